package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Config is the optional config.toml layer consulted when a SECRNN_*
// variable is not set in the environment.
type Config struct {
	Server struct {
		Host    string   `toml:"host"`
		Origins []string `toml:"origins"`
	} `toml:"server"`

	Runs struct {
		Path            string `toml:"path"`
		KeepCheckpoints int    `toml:"keep_checkpoints"`
		NoPrune         bool   `toml:"no_prune"`
	} `toml:"runs"`

	Launch struct {
		Python      string `toml:"python"`
		Entrypoint  string `toml:"entrypoint"`
		MaxParallel int    `toml:"max_parallel"`
	} `toml:"launch"`

	Logging struct {
		Debug bool `toml:"debug"`
	} `toml:"logging"`
}

var (
	configOnce sync.Once
	config     *Config
	configPath string
)

// ConfigPaths returns the candidate config file paths for the current OS,
// in lookup order.
func ConfigPaths() []string {
	var paths []string

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			paths = append(paths, filepath.Join(appData, "secrnn", "config.toml"))
		}
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			paths = append(paths, filepath.Join(userProfile, ".secrnn", "config.toml"))
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err == nil {
			paths = append(paths,
				filepath.Join(home, "Library", "Application Support", "secrnn", "config.toml"),
				filepath.Join(home, ".config", "secrnn", "config.toml"),
				filepath.Join(home, ".secrnn", "config.toml"),
			)
		}
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			paths = append(paths, filepath.Join(xdgConfig, "secrnn", "config.toml"))
		}
		home, err := os.UserHomeDir()
		if err == nil {
			paths = append(paths,
				filepath.Join(home, ".config", "secrnn", "config.toml"),
				filepath.Join(home, ".secrnn", "config.toml"),
			)
		}
		paths = append(paths, "/etc/secrnn/config.toml")
	}

	return paths
}

func loadFile() (*Config, string, error) {
	for _, path := range ConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			var cfg Config
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, "", fmt.Errorf("error parsing config file %s: %w", path, err)
			}
			return &cfg, path, nil
		}
	}
	return nil, "", nil
}

// fileValue returns the config file value backing an environment variable
// key, or "" when no config file is present or the key has no mapping.
func fileValue(key string) string {
	configOnce.Do(func() {
		var err error
		config, configPath, err = loadFile()
		if err != nil {
			slog.Warn("failed to load config file", "error", err)
		} else if config != nil {
			slog.Debug("loaded config file", "path", configPath)
		}
	})

	if config == nil {
		return ""
	}

	switch key {
	case "SECRNN_HOST":
		return config.Server.Host
	case "SECRNN_ORIGINS":
		if len(config.Server.Origins) > 0 {
			return strings.Join(config.Server.Origins, ",")
		}
	case "SECRNN_RUNS":
		return config.Runs.Path
	case "SECRNN_KEEP_CHECKPOINTS":
		if config.Runs.KeepCheckpoints > 0 {
			return fmt.Sprintf("%d", config.Runs.KeepCheckpoints)
		}
	case "SECRNN_NOPRUNE":
		if config.Runs.NoPrune {
			return "true"
		}
	case "SECRNN_PYTHON":
		return config.Launch.Python
	case "SECRNN_ENTRYPOINT":
		return config.Launch.Entrypoint
	case "SECRNN_MAX_PARALLEL":
		if config.Launch.MaxParallel > 0 {
			return fmt.Sprintf("%d", config.Launch.MaxParallel)
		}
	case "SECRNN_DEBUG":
		if config.Logging.Debug {
			return "true"
		}
	}

	return ""
}

// ExampleConfig returns a commented example TOML configuration.
func ExampleConfig() string {
	return `# secrnn configuration file
# Environment variables take precedence over values set here.

[server]
# Network binding address for the monitor server (default: "127.0.0.1:24365")
host = "127.0.0.1:24365"
# Allowed CORS origins
origins = ["http://localhost:3000"]

[runs]
# Root directory run outputs are written under
path = "/data/secrnn/runs"
# Maximum checkpoints retained per run (default: 3)
keep_checkpoints = 3
# Disable checkpoint pruning (default: false)
no_prune = false

[launch]
# Interpreter used to launch the fine-tuning entry point (default: "python3")
python = "python3"
# Path of the external fine-tuning script
entrypoint = "run_finetune_sec_adapter_finbert.py"
# Maximum number of concurrently launched runs (default: 1)
max_parallel = 1

[logging]
# Enable debug logging (default: false)
debug = false
`
}
