package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterExcluded(t *testing.T) {
	f := NewFilter("**/*.snap", "secrets.env")

	excluded := []string{
		"node_modules/x.js",
		"web/node_modules/react/index.js",
		"dist/bundle.js",
		"packages/app/build/out.js",
		"package-lock.json",
		"frontend/yarn.lock",
		"pnpm-lock.yaml",
		"bun.lockb",
		"src/__snapshots__/a.snap",
		"config/secrets.env",
	}
	for _, p := range excluded {
		assert.True(t, f.Excluded(p), p)
	}

	kept := []string{"a.ts", "src/b.ts", "builder.go", "distance/calc.py", "README.md"}
	for _, p := range kept {
		assert.False(t, f.Excluded(p), p)
	}
}

func TestFilterSkipsBinaryExtensionsAndLargeFiles(t *testing.T) {
	f := NewFilter()
	assert.True(t, f.Skip("assets/logo.PNG", 10))
	assert.True(t, f.Skip("main.go", DefaultMaxFileSize+1))
	assert.False(t, f.Skip("main.go", 100))
}

func TestFilterIgnoresInvalidPatterns(t *testing.T) {
	f := NewFilter("[", "  ")
	assert.Len(t, f.patterns, len(DefaultExclusions))
}

func TestIsText(t *testing.T) {
	assert.True(t, IsText([]byte("package main\n")))
	assert.False(t, IsText([]byte("PK\x03\x04\x00\x00")))
	assert.False(t, IsText([]byte{0xff, 0xfe, 0xfd}))
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "TypeScript", Language("src/a.ts"))
	assert.Equal(t, "Go", Language("cmd/main.GO"))
	assert.Equal(t, "", Language("Makefile"))
}
