package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscoverFindsConfigInParent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigFileName), `{"typeCheckingMode":"strict","venv":"env39"}`)
	nested := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, path, err := Discover(nested)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(root, ConfigFileName), path)
	assert.Equal(t, "strict", cfg.TypeCheckingMode)
	assert.Equal(t, "env39", cfg.Venv)
}

func TestDiscoverNoConfig(t *testing.T) {
	cfg, path, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.Empty(t, path)
}

func TestDiscoverMalformedConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ConfigFileName), `{"typeCheckingMode":`)

	_, _, err := Discover(root)
	require.Error(t, err)
}

func fakeInterpreter(t *testing.T, envDir string) string {
	t.Helper()
	var py string
	if runtime.GOOS == "windows" {
		py = filepath.Join(envDir, "Scripts", "python.exe")
	} else {
		py = filepath.Join(envDir, "bin", "python")
	}
	writeFile(t, py, "#!/bin/sh\n")
	return py
}

func TestResolveInterpreter(t *testing.T) {
	t.Run("explicit pythonPath wins", func(t *testing.T) {
		root := t.TempDir()
		fakeInterpreter(t, filepath.Join(root, ".venv"))
		cfg := &FileConfig{PythonPath: "custom/python"}
		assert.Equal(t, filepath.Join(root, "custom", "python"), ResolveInterpreter(root, cfg))
	})

	t.Run("venvPath plus venv", func(t *testing.T) {
		root := t.TempDir()
		py := fakeInterpreter(t, filepath.Join(root, "envs", "py311"))
		cfg := &FileConfig{VenvPath: "envs", Venv: "py311"}
		assert.Equal(t, py, ResolveInterpreter(root, cfg))
	})

	t.Run("falls back to .venv", func(t *testing.T) {
		root := t.TempDir()
		py := fakeInterpreter(t, filepath.Join(root, ".venv"))
		assert.Equal(t, py, ResolveInterpreter(root, nil))
	})

	t.Run("falls back to venv then pixi", func(t *testing.T) {
		root := t.TempDir()
		py := fakeInterpreter(t, filepath.Join(root, ".pixi", "envs", "default"))
		assert.Equal(t, py, ResolveInterpreter(root, nil))
	})

	t.Run("nothing found", func(t *testing.T) {
		assert.Empty(t, ResolveInterpreter(t.TempDir(), nil))
	})
}

func TestRequestTimeout(t *testing.T) {
	t.Setenv("PYRIGHT_TIMEOUT", "")
	assert.Equal(t, DefaultRequestTimeout, RequestTimeout())

	t.Setenv("PYRIGHT_TIMEOUT", "2.5")
	assert.Equal(t, 2500*time.Millisecond, RequestTimeout())

	t.Setenv("PYRIGHT_TIMEOUT", "not-a-number")
	assert.Equal(t, DefaultRequestTimeout, RequestTimeout())

	t.Setenv("PYRIGHT_TIMEOUT", "-3")
	assert.Equal(t, DefaultRequestTimeout, RequestTimeout())
}

func TestPyrightCommandEnvOverride(t *testing.T) {
	t.Setenv("PYRIGHT_PATH", "/opt/pyright/langserver")
	path, args, err := PyrightCommand()
	require.NoError(t, err)
	assert.Equal(t, "/opt/pyright/langserver", path)
	assert.Equal(t, []string{"--stdio"}, args)
}

func TestInitializationOptions(t *testing.T) {
	cfg := &FileConfig{
		TypeCheckingMode: "strict",
		ExtraPaths:       []string{"src", "lib"},
	}
	opts := InitializationOptions(cfg, "/ws/.venv/bin/python")

	python, ok := opts["python"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/ws/.venv/bin/python", python["pythonPath"])

	analysis, ok := python["analysis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "strict", analysis["typeCheckingMode"])
	assert.Equal(t, "workspace", analysis["diagnosticMode"])
	assert.Equal(t, true, analysis["autoSearchPaths"])
	assert.Equal(t, []string{"src", "lib"}, analysis["extraPaths"])
}

func TestInitializationOptionsDefaults(t *testing.T) {
	opts := InitializationOptions(nil, "")
	python := opts["python"].(map[string]any)
	_, hasPath := python["pythonPath"]
	assert.False(t, hasPath)
	analysis := python["analysis"].(map[string]any)
	assert.Equal(t, DefaultTypeCheckingMode, analysis["typeCheckingMode"])
}

func TestMatcher(t *testing.T) {
	cfg := &FileConfig{
		Include: []string{"src"},
		Exclude: []string{"**/node_modules/**", "typings"},
	}
	m, err := NewMatcher(cfg)
	require.NoError(t, err)

	assert.True(t, m.Allowed("src/app.py"))
	assert.True(t, m.Allowed("src/deep/nested/mod.py"))
	assert.False(t, m.Allowed("scripts/tool.py"), "outside include set")
	assert.False(t, m.Allowed("src/node_modules/pkg/index.py"), "exclude wins over include")
	assert.False(t, m.Allowed("typings/stub.pyi"))
}

func TestMatcherNilConfigAllowsAll(t *testing.T) {
	m, err := NewMatcher(nil)
	require.NoError(t, err)
	assert.True(t, m.Allowed("anything/at/all.py"))
}

func TestMatcherBadPattern(t *testing.T) {
	_, err := NewMatcher(&FileConfig{Exclude: []string{"[unclosed*"}})
	require.Error(t, err)
}
