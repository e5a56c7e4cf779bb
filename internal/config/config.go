package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains filesystem configuration.
type Paths struct {
	SourceRoot string `toml:"source_root"`
	OutputRoot string `toml:"output_root"`
	LogDir     string `toml:"log_dir"`
}

// Packaging contains archive construction policy.
type Packaging struct {
	LargeDatasets     []string `toml:"large_datasets"`
	OutputSubdir      string   `toml:"output_subdir"`
	OverwriteExisting bool     `toml:"overwrite_existing"`
}

// OpenVDM contains configuration for the cruise ID lookup API.
type OpenVDM struct {
	APIURL         string `toml:"api_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Email contains configuration for the summary notification.
type Email struct {
	Enabled    bool   `toml:"enabled"`
	To         string `toml:"to"`
	From       string `toml:"from"`
	SMTPServer string `toml:"smtp_server"`
	SMTPPort   int    `toml:"smtp_port"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full application configuration.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Packaging Packaging `toml:"packaging"`
	OpenVDM   OpenVDM   `toml:"openvdm"`
	Email     Email     `toml:"email"`
	Logging   Logging   `toml:"logging"`
}

// Load reads configuration from the given path, falling back to the default
// location when path is empty. It returns the resolved path and whether a
// config file existed there; defaults apply when it did not.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// DefaultConfigPath returns the expanded default config file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/r2rpack/config.toml")
}

// CreateSample writes the embedded sample configuration to the target path.
func CreateSample(target string) error {
	return os.WriteFile(target, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the directories a packaging run writes to. The
// output root is created best-effort so config load still succeeds when the
// data mount is temporarily offline.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	if strings.TrimSpace(c.Paths.OutputRoot) != "" {
		_ = os.MkdirAll(c.Paths.OutputRoot, 0o755)
	}
	return nil
}

// IsLargeDataset reports whether name appears in the large-dataset allow-list.
func (c *Config) IsLargeDataset(name string) bool {
	for _, candidate := range c.Packaging.LargeDatasets {
		if candidate == name {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
