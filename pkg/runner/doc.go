// Package runner contains the change-to-action core of onsave.
//
// Each tick of filesystem activity flows through three stages:
//
//   - [Selector] reduces a [watch.Batch] to at most one actionable [Target].
//   - [Supervisor] replaces whatever is running with one new [Job] for that
//     target (replace-and-start).
//   - When a primary job finishes successfully and a then-script is
//     configured, the supervisor chains exactly one then-job, unless the
//     edited file was the then-script itself.
//
// [Loop.OnTick] sequences the stages and decides whether to keep running.
package runner
