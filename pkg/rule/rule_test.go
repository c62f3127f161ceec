package rule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onsave/onsave/pkg/rule"
)

func TestNew(t *testing.T) {
	t.Parallel()

	r, err := rule.New(`pathExt(path) == ".tmp"`)
	require.NoError(t, err)
	assert.Equal(t, `pathExt(path) == ".tmp"`, r.String())
}

func TestNew_InvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := rule.New(`pathExt(`)
	require.Error(t, err)
}

func TestRule_MatchPath(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		match string
		path  string
		want  bool
	}{
		"extension match": {
			match: `pathExt(path) in [".tmp", ".swp"]`,
			path:  "/work/build.tmp",
			want:  true,
		},
		"extension miss": {
			match: `pathExt(path) in [".tmp", ".swp"]`,
			path:  "/work/build.sh",
			want:  false,
		},
		"base prefix": {
			match: `pathBase(path).startsWith("wip-")`,
			path:  "/work/wip-deploy.sh",
			want:  true,
		},
		"directory match": {
			match: `pathDir(path).contains("/vendor/")`,
			path:  "/work/vendor/tool/run.sh",
			want:  true,
		},
		"regex match": {
			match: `pathBase(path).matches("^test_.*")`,
			path:  "/work/test_all.sh",
			want:  true,
		},
		"non-boolean result is a non-match": {
			match: `pathBase(path)`,
			path:  "/work/run.sh",
			want:  false,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := rule.MustNew(tc.match)
			assert.Equal(t, tc.want, r.MatchPath(tc.path))
		})
	}
}
