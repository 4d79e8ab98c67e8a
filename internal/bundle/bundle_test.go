package bundle

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadPlainScriptUnchanged(t *testing.T) {
	src := "var x = 1;\nfunction f() { return x }\n"
	path := writeFile(t, t.TempDir(), "plain.js", []byte(src))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestLoadTypeScript(t *testing.T) {
	path := writeFile(t, t.TempDir(), "typed.ts", []byte("interface P { n: number }\nvar p: P = { n: 1 };\n"))

	got, err := Load(path)
	require.NoError(t, err)
	assert.NotContains(t, got, "interface")
	assert.Contains(t, got, "var p = { n: 1 }")
}

func TestLoadModuleBundlesImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dep.js", []byte("export const base = 40;\n"))
	path := writeFile(t, dir, "main.mjs", []byte("import { base } from './dep.js';\nexport const answer = base + 2;\n"))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, got, "var module =")
	assert.Contains(t, got, "answer")
	assert.NotContains(t, got, "import ")
}

func TestLoadBrotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write([]byte("let y: string = 'z';\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	path := writeFile(t, t.TempDir(), "packed.ts.br", buf.Bytes())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, got, `let y = "z"`)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.js"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := writeFile(t, dir, "bad.ts", []byte("let = ;"))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "transforming")

	corrupt := writeFile(t, dir, "corrupt.js.br", []byte("not brotli"))
	_, err = Load(corrupt)
	assert.ErrorContains(t, err, "decompressing")
}
