// Package execs starts and supervises script subprocesses.
//
// A [Shell] turns a script invocation like "./build.sh" into an argv by
// prepending the configured shell (e.g. "bash -c"). [Shell.Start] launches the
// resulting command in its own process group and returns a [Process] handle
// which exposes liveness, forcible termination, and an awaitable terminal
// [Status].
package execs
