package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Host returns the scheme and host:port to serve or dial the monitor API on,
// from SECRNN_HOST. Missing pieces fall back to scheme http, host 127.0.0.1
// and port 24365.
func Host() *url.URL {
	defaultPort := "24365"

	s := strings.TrimSpace(Var("SECRNN_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// Origins returns a list of allowed origins for the monitor API.
func Origins() (origins []string) {
	if s := Var("SECRNN_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// RunsDir returns the root directory run outputs are written under.
func RunsDir() string {
	if s := Var("SECRNN_RUNS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".secrnn", "runs")
}

// Python returns the interpreter used to launch the fine-tuning entry point.
func Python() string {
	if s := Var("SECRNN_PYTHON"); s != "" {
		return s
	}

	return "python3"
}

// Entrypoint returns the path of the external fine-tuning script.
func Entrypoint() string {
	if s := Var("SECRNN_ENTRYPOINT"); s != "" {
		return s
	}

	return "run_finetune_sec_adapter_finbert.py"
}

// Var returns an environment variable stripped of leading and trailing quotes
// or spaces, falling back to the config file when the variable is unset.
func Var(key string) string {
	if s := strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'"); s != "" {
		return s
	}

	return fileValue(key)
}

func Bool(k string) func() bool {
	return func() bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}

			return b
		}

		return false
	}
}

var (
	// Debug enables additional debug information.
	Debug = Bool("SECRNN_DEBUG")
	// NoPrune disables checkpoint pruning past the retention window.
	NoPrune = Bool("SECRNN_NOPRUNE")
)

func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

var (
	TmpDir = String("SECRNN_TMPDIR")
)

func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}

		return defaultValue
	}
}

var (
	// MaxParallel sets how many sweep configurations run at once.
	MaxParallel = Uint("SECRNN_MAX_PARALLEL", 1)
	// KeepCheckpoints sets how many checkpoints a run retains.
	KeepCheckpoints = Uint("SECRNN_KEEP_CHECKPOINTS", 3)
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"SECRNN_DEBUG":            {"SECRNN_DEBUG", Debug(), "Show additional debug information (e.g. SECRNN_DEBUG=1)"},
		"SECRNN_ENTRYPOINT":       {"SECRNN_ENTRYPOINT", Entrypoint(), "Path of the external fine-tuning script"},
		"SECRNN_HOST":             {"SECRNN_HOST", Host(), "Address for the monitor server (default \"127.0.0.1:24365\")"},
		"SECRNN_KEEP_CHECKPOINTS": {"SECRNN_KEEP_CHECKPOINTS", KeepCheckpoints(), "Maximum checkpoints retained per run (default 3)"},
		"SECRNN_MAX_PARALLEL":     {"SECRNN_MAX_PARALLEL", MaxParallel(), "Maximum number of concurrently launched runs (default 1)"},
		"SECRNN_NOPRUNE":          {"SECRNN_NOPRUNE", NoPrune(), "Do not prune checkpoints past the retention window"},
		"SECRNN_ORIGINS":          {"SECRNN_ORIGINS", Origins(), "A comma separated list of allowed origins"},
		"SECRNN_PYTHON":           {"SECRNN_PYTHON", Python(), "Interpreter used to launch the entry point (default \"python3\")"},
		"SECRNN_RUNS":             {"SECRNN_RUNS", RunsDir(), "The path to the runs directory"},
		"SECRNN_TMPDIR":           {"SECRNN_TMPDIR", TmpDir(), "Location for temporary files"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
