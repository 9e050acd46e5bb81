package sweep

import (
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/envconfig"
)

// ScriptOptions configures generated submission scripts.
type ScriptOptions struct {
	Python     string
	Entrypoint string
	OutputDir  string

	// Partition is the cluster partition jobs are submitted to.
	Partition string

	// TimeLimit is the wall clock limit, e.g. "24:00:00".
	TimeLimit string
}

var scriptTemplate = template.Must(template.New("sbatch").Parse(`#!/bin/bash
#SBATCH --job-name={{.JobName}}
#SBATCH --gres=gpu:1
{{- if .Partition}}
#SBATCH --partition={{.Partition}}
{{- end}}
{{- if .TimeLimit}}
#SBATCH --time={{.TimeLimit}}
{{- end}}
#SBATCH --output={{.JobName}}.out
#SBATCH --error={{.JobName}}.err

{{.Command}}
`))

// WriteScripts emits one sbatch job script per configuration into dir, for
// clusters where the driver cannot hold the jobs itself. The scripts carry
// the same argument vector Run would pass.
func WriteScripts(dir string, exps []api.Experiment, opts ScriptOptions) ([]string, error) {
	if opts.Python == "" {
		opts.Python = envconfig.Python()
	}
	if opts.Entrypoint == "" {
		opts.Entrypoint = envconfig.Entrypoint()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = envconfig.RunsDir()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range exps {
		job := sanitize(e.Name())

		var cmd strings.Builder
		cmd.WriteString(shellQuote(opts.Python))
		cmd.WriteString(" " + shellQuote(opts.Entrypoint))
		for _, arg := range Args(e, opts.OutputDir) {
			if strings.HasPrefix(arg, "--") {
				cmd.WriteString(" \\\n    " + arg)
			} else {
				cmd.WriteString(" " + shellQuote(arg))
			}
		}

		p := filepath.Join(dir, job+".sbatch")
		f, err := os.Create(p)
		if err != nil {
			return paths, err
		}

		err = scriptTemplate.Execute(f, map[string]string{
			"JobName":   job,
			"Partition": opts.Partition,
			"TimeLimit": opts.TimeLimit,
			"Command":   cmd.String(),
		})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, err
		}

		paths = append(paths, p)
	}

	return paths, nil
}

// shellQuote wraps s in single quotes, escaping embedded ones, so values
// pass through the shell untouched.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// sanitize rewrites characters that would break a job name or file path.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '-'
		default:
			return r
		}
	}, name)
}
