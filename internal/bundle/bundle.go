// Package bundle loads script files for evaluation. TypeScript is
// stripped of types, ES modules are bundled into a classic script, and a
// ".br" suffix marks a brotli-compressed file.
package bundle

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	esbuild "github.com/evanw/esbuild/pkg/api"
)

// MaxSourceSize caps a decompressed source file.
const MaxSourceSize = 64 << 20

// GlobalName is the variable an ES module's exports are assigned to.
const GlobalName = "module"

// Load reads path and returns a classic script ready for global
// evaluation.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	name := path
	if strings.HasSuffix(name, ".br") {
		name = strings.TrimSuffix(name, ".br")
		if data, err = decompress(data); err != nil {
			return "", fmt.Errorf("decompressing %s: %w", path, err)
		}
	}
	return Source(string(data), name)
}

// Source prepares src, whose file name selects the loader. dir-relative
// imports resolve against the directory of name.
func Source(src, name string) (string, error) {
	loader := loaderFor(name)
	ext := filepath.Ext(name)
	if isModule(src) || ext == ".mjs" || ext == ".mts" {
		return bundleModule(src, name, loader)
	}
	if loader == esbuild.LoaderJS {
		return src, nil
	}
	return transform(src, name, loader)
}

func loaderFor(name string) esbuild.Loader {
	switch filepath.Ext(name) {
	case ".ts", ".mts", ".cts":
		return esbuild.LoaderTS
	case ".tsx":
		return esbuild.LoaderTSX
	case ".jsx":
		return esbuild.LoaderJSX
	default:
		return esbuild.LoaderJS
	}
}

// isModule reports whether src uses import or export statements.
func isModule(src string) bool {
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "import ") || strings.HasPrefix(line, "import{") ||
			strings.HasPrefix(line, "export ") || strings.HasPrefix(line, "export{") {
			return true
		}
	}
	return false
}

// transform strips TypeScript or JSX syntax and keeps top-level
// declarations at top level.
func transform(src, name string, loader esbuild.Loader) (string, error) {
	res := esbuild.Transform(src, esbuild.TransformOptions{
		Loader:     loader,
		Sourcefile: name,
		Target:     esbuild.ES2020,
	})
	if len(res.Errors) > 0 {
		return "", fmt.Errorf("transforming %s: %s", name, messages(res.Errors))
	}
	return string(res.Code), nil
}

// bundleModule resolves imports and wraps the module in an IIFE whose
// exports land in the global named GlobalName.
func bundleModule(src, name string, loader esbuild.Loader) (string, error) {
	dir, err := filepath.Abs(filepath.Dir(name))
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", name, err)
	}
	res := esbuild.Build(esbuild.BuildOptions{
		Stdin: &esbuild.StdinOptions{
			Contents:   src,
			ResolveDir: dir,
			Sourcefile: filepath.Base(name),
			Loader:     loader,
		},
		Bundle:      true,
		Write:       false,
		Format:      esbuild.FormatIIFE,
		GlobalName:  GlobalName,
		Platform:    esbuild.PlatformNeutral,
		Target:      esbuild.ES2020,
		TreeShaking: esbuild.TreeShakingFalse,
	})
	if len(res.Errors) > 0 {
		return "", fmt.Errorf("bundling %s: %s", name, messages(res.Errors))
	}
	if len(res.OutputFiles) == 0 {
		return "", fmt.Errorf("bundling %s produced no output", name)
	}
	return string(res.OutputFiles[0].Contents), nil
}

func messages(msgs []esbuild.Message) string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return strings.Join(out, "; ")
}

func decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(io.LimitReader(r, MaxSourceSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxSourceSize {
		return nil, fmt.Errorf("source exceeds %d bytes", MaxSourceSize)
	}
	return out, nil
}
