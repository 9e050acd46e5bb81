package envconfig

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestHost(t *testing.T) {
	cases := map[string]struct {
		value  string
		expect string
	}{
		"empty":               {"", "127.0.0.1:24365"},
		"only address":        {"1.2.3.4", "1.2.3.4:24365"},
		"only port":           {":1234", ":1234"},
		"address and port":    {"1.2.3.4:1234", "1.2.3.4:1234"},
		"hostname":            {"example.com", "example.com:24365"},
		"hostname and port":   {"example.com:1234", "example.com:1234"},
		"zero port":           {":0", ":0"},
		"too large port":      {":66000", ":24365"},
		"too small port":      {":-1", ":24365"},
		"ipv6 localhost":      {"[::1]", "[::1]:24365"},
		"ipv6 world open":     {"[::]", "[::]:24365"},
		"ipv6 no brackets":    {"::1", "[::1]:24365"},
		"ipv6 + port":         {"[::1]:1337", "[::1]:1337"},
		"extra space":         {" 1.2.3.4 ", "1.2.3.4:24365"},
		"extra quotes":        {"\"1.2.3.4\"", "1.2.3.4:24365"},
		"extra space+quotes":  {" \" 1.2.3.4 \" ", "1.2.3.4:24365"},
		"extra single quotes": {"'1.2.3.4'", "1.2.3.4:24365"},
		"http":                {"http://1.2.3.4", "1.2.3.4:80"},
		"http port":           {"http://1.2.3.4:4321", "1.2.3.4:4321"},
		"https":               {"https://1.2.3.4", "1.2.3.4:443"},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("SECRNN_HOST", tt.value)
			require.Equal(t, tt.expect, Host().Host)
		})
	}
}

func TestOrigins(t *testing.T) {
	cases := []struct {
		value  string
		expect []string
	}{
		{"", []string{
			"http://localhost",
			"https://localhost",
			"http://localhost:*",
			"https://localhost:*",
			"http://127.0.0.1",
			"https://127.0.0.1",
			"http://127.0.0.1:*",
			"https://127.0.0.1:*",
			"http://0.0.0.0",
			"https://0.0.0.0",
			"http://0.0.0.0:*",
			"https://0.0.0.0:*",
		}},
		{"http://10.0.0.1", []string{
			"http://10.0.0.1",
			"http://localhost",
			"https://localhost",
			"http://localhost:*",
			"https://localhost:*",
			"http://127.0.0.1",
			"https://127.0.0.1",
			"http://127.0.0.1:*",
			"https://127.0.0.1:*",
			"http://0.0.0.0",
			"https://0.0.0.0",
			"http://0.0.0.0:*",
			"https://0.0.0.0:*",
		}},
	}

	for _, tt := range cases {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("SECRNN_ORIGINS", tt.value)
			if diff := cmp.Diff(tt.expect, Origins()); diff != "" {
				t.Errorf("origins mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"false": false,
		"0":     false,
		"1":     true,
		"true":  true,
		"yes":   true, // values that do not parse enable the flag
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("SECRNN_DEBUG", value)
			require.Equal(t, expect, Debug())
		})
	}
}

func TestUint(t *testing.T) {
	cases := map[string]uint{
		"":    1,
		"4":   4,
		"0":   0,
		"-2":  1,
		"1.5": 1,
		"cat": 1,
	}

	for value, expect := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("SECRNN_MAX_PARALLEL", value)
			require.Equal(t, expect, MaxParallel())
		})
	}
}

func TestKeepCheckpoints(t *testing.T) {
	t.Setenv("SECRNN_KEEP_CHECKPOINTS", "")
	require.Equal(t, uint(3), KeepCheckpoints())

	t.Setenv("SECRNN_KEEP_CHECKPOINTS", "5")
	require.Equal(t, uint(5), KeepCheckpoints())
}

func TestRunsDir(t *testing.T) {
	t.Setenv("SECRNN_RUNS", "/data/runs")
	require.Equal(t, "/data/runs", RunsDir())
}

func TestLaunchDefaults(t *testing.T) {
	t.Setenv("SECRNN_PYTHON", "")
	t.Setenv("SECRNN_ENTRYPOINT", "")
	require.Equal(t, "python3", Python())
	require.Equal(t, "run_finetune_sec_adapter_finbert.py", Entrypoint())

	t.Setenv("SECRNN_PYTHON", "/opt/conda/bin/python")
	t.Setenv("SECRNN_ENTRYPOINT", "examples/run_finetune_sec_adapter_finbert.py")
	require.Equal(t, "/opt/conda/bin/python", Python())
	require.Equal(t, "examples/run_finetune_sec_adapter_finbert.py", Entrypoint())
}
