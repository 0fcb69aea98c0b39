// Package config resolves everything the bridge needs to know before
// launching pyright: the pyrightconfig.json of the workspace, the Python
// interpreter to analyze with, the server command line, and environment
// overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// DefaultRequestTimeout applies when PYRIGHT_TIMEOUT is unset.
const DefaultRequestTimeout = 60 * time.Second

// DefaultTypeCheckingMode applies when pyrightconfig.json does not set one.
const DefaultTypeCheckingMode = "basic"

// FileConfig mirrors the subset of pyrightconfig.json the bridge consumes.
type FileConfig struct {
	PythonPath       string   `json:"pythonPath,omitempty"`
	VenvPath         string   `json:"venvPath,omitempty"`
	Venv             string   `json:"venv,omitempty"`
	ExtraPaths       []string `json:"extraPaths,omitempty"`
	TypeCheckingMode string   `json:"typeCheckingMode,omitempty"`
	PythonVersion    string   `json:"pythonVersion,omitempty"`
	PythonPlatform   string   `json:"pythonPlatform,omitempty"`
	Include          []string `json:"include,omitempty"`
	Exclude          []string `json:"exclude,omitempty"`
}

// ConfigFileName is the project-local configuration file pyright reads.
const ConfigFileName = "pyrightconfig.json"

// Discover walks up from root looking for pyrightconfig.json. It returns
// the parsed config and the path it was found at, or (nil, "") when no
// config exists anywhere up the tree.
func Discover(root string) (*FileConfig, string, error) {
	dir, err := filepath.Abs(root)
	if err != nil {
		return nil, "", err
	}

	for {
		path := filepath.Join(dir, ConfigFileName)
		cfg, err := loadFile(path)
		if err == nil {
			return cfg, path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("read %s: %w", path, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}

func loadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &cfg, nil
}

// ResolveInterpreter finds the Python interpreter pyright should analyze
// with. Precedence: explicit pythonPath, then venvPath+venv from the
// config, then conventional environment directories under the root.
func ResolveInterpreter(root string, cfg *FileConfig) string {
	if cfg != nil && cfg.PythonPath != "" {
		return absJoin(root, cfg.PythonPath)
	}

	var candidates []string
	if cfg != nil && cfg.Venv != "" {
		venvBase := root
		if cfg.VenvPath != "" {
			venvBase = absJoin(root, cfg.VenvPath)
		}
		candidates = append(candidates, filepath.Join(venvBase, cfg.Venv))
	}
	candidates = append(candidates,
		filepath.Join(root, ".venv"),
		filepath.Join(root, "venv"),
		filepath.Join(root, ".pixi", "envs", "default"),
	)

	for _, env := range candidates {
		if py := interpreterIn(env); py != "" {
			return py
		}
	}
	return ""
}

func interpreterIn(envDir string) string {
	var py string
	if runtime.GOOS == "windows" {
		py = filepath.Join(envDir, "Scripts", "python.exe")
	} else {
		py = filepath.Join(envDir, "bin", "python")
	}
	if info, err := os.Stat(py); err == nil && !info.IsDir() {
		return py
	}
	return ""
}

func absJoin(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// PyrightCommand resolves the language server command line. PYRIGHT_PATH
// overrides everything; otherwise pyright-langserver is looked up on PATH,
// falling back to running it through npx.
func PyrightCommand() (string, []string, error) {
	if override := os.Getenv("PYRIGHT_PATH"); override != "" {
		return override, []string{"--stdio"}, nil
	}
	if path, err := exec.LookPath("pyright-langserver"); err == nil {
		return path, []string{"--stdio"}, nil
	}
	if path, err := exec.LookPath("npx"); err == nil {
		return path, []string{"--yes", "pyright", "pyright-langserver", "--stdio"}, nil
	}
	return "", nil, errors.New("pyright-langserver not found: install pyright or set PYRIGHT_PATH")
}

// RequestTimeout reads the PYRIGHT_TIMEOUT override, in seconds.
func RequestTimeout() time.Duration {
	raw := os.Getenv("PYRIGHT_TIMEOUT")
	if raw == "" {
		return DefaultRequestTimeout
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(secs * float64(time.Second))
}

// AnalysisSettings builds the python.analysis settings block shared by the
// initialize request and the workspace/configuration reverse request.
func AnalysisSettings(cfg *FileConfig) map[string]any {
	mode := DefaultTypeCheckingMode
	var extraPaths []string
	if cfg != nil {
		if cfg.TypeCheckingMode != "" {
			mode = cfg.TypeCheckingMode
		}
		extraPaths = cfg.ExtraPaths
	}
	settings := map[string]any{
		"typeCheckingMode":       mode,
		"autoSearchPaths":        true,
		"useLibraryCodeForTypes": true,
		"diagnosticMode":         "workspace",
	}
	if len(extraPaths) > 0 {
		settings["extraPaths"] = extraPaths
	}
	return settings
}

// InitializationOptions builds the initializationOptions payload of the
// initialize request.
func InitializationOptions(cfg *FileConfig, interpreter string) map[string]any {
	python := map[string]any{
		"analysis": AnalysisSettings(cfg),
	}
	if interpreter != "" {
		python["pythonPath"] = interpreter
	}
	return map[string]any{"python": python}
}
