package ignore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	m := New([]string{
		"# lockfiles",
		"",
		"go.sum",
		"vendor/",
		"*.min.js",
		"/generated",
		"docs/**/*.png",
		"!docs/keep/logo.png",
	})
	assert.Equal(t, 6, m.Len())

	tests := []struct {
		path string
		want bool
	}{
		{"go.sum", true},
		{"tools/go.sum", true},
		{"vendor/github.com/x/y.go", true},
		{"app/vendor/z.go", true},
		{"web/app.min.js", true},
		{"web/app.js", false},
		{"generated/api.go", true},
		{"pkg/generated/api.go", false},
		{"docs/img/arch.png", true},
		{"docs/keep/logo.png", false},
		{"main.go", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}
}

func TestNilMatcher(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("go.sum"))
	assert.Zero(t, m.Len())

	diff := "diff --git a/go.sum b/go.sum\n+x\n"
	out, skipped := m.FilterDiff(diff)
	assert.Equal(t, diff, out)
	assert.Empty(t, skipped)
}

func TestWith(t *testing.T) {
	base := New([]string{"go.sum"})
	extended := base.With([]string{"*.pb.go", "!go.sum"})

	assert.True(t, base.Match("go.sum"))
	assert.False(t, base.Match("api.pb.go"))
	assert.True(t, extended.Match("api.pb.go"))
	assert.False(t, extended.Match("go.sum"), "later negation re-includes")
}

const sampleDiff = `diff --git a/go.mod b/go.mod
--- a/go.mod
+++ b/go.mod
@@ -1 +1,2 @@
 module example.com/app
+require example.com/dep v1.0.0
diff --git a/go.sum b/go.sum
--- a/go.sum
+++ b/go.sum
@@ -0,0 +1 @@
+example.com/dep v1.0.0 h1:abc=
diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1 +1 @@
-package app
+package main
`

func TestFilterDiff(t *testing.T) {
	out, skipped := New([]string{"go.sum"}).FilterDiff(sampleDiff)

	assert.Equal(t, []string{"go.sum"}, skipped)
	assert.NotContains(t, out, "h1:abc=")
	assert.Contains(t, out, "diff --git a/go.mod b/go.mod")
	assert.Contains(t, out, "+package main")
	assert.True(t, strings.HasSuffix(out, "+package main\n"))
}

func TestFilterDiff_KeepsPreambleAndPlainText(t *testing.T) {
	m := New([]string{"*.lock"})

	plain := "not a diff at all"
	out, skipped := m.FilterDiff(plain)
	assert.Equal(t, plain, out)
	assert.Empty(t, skipped)

	withPreamble := "Commit message\n\ndiff --git a/Cargo.lock b/Cargo.lock\n+x\n"
	out, skipped = m.FilterDiff(withPreamble)
	assert.Equal(t, "Commit message\n\n", out)
	assert.Equal(t, []string{"Cargo.lock"}, skipped)
}

func TestHeaderPath(t *testing.T) {
	assert.Equal(t, "dir/file.go", headerPath("diff --git a/dir/file.go b/dir/file.go\n"))
	assert.Equal(t, "new.go", headerPath("diff --git a/old.go b/new.go\r\n"))
	assert.Equal(t, "odd", headerPath("diff --git a/odd"))
}

func TestParse(t *testing.T) {
	lines, err := Parse(strings.NewReader("go.sum\n# comment\n\nvendor/\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"go.sum", "# comment", "", "vendor/"}, lines)
	assert.Equal(t, 2, New(lines).Len())
}
