package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	input := `
FROM /models/finbert-sec
KPI /models/kpi_pytorch_model.bin
ADAPTER /models/meta_adapter.bin
TASK sec_regression
FOLDS /data/mda_fold_0,/data/mda_fold_1
LOSS kpi
PARAMETER learning_rate 5e-5
PARAMETER num_train_epochs 50
COMMENT baseline
`

	f, err := ParseFile(strings.NewReader(input))
	require.NoError(t, err)

	expect := []Command{
		{Name: "finbert", Args: "/models/finbert-sec"},
		{Name: "kpi", Args: "/models/kpi_pytorch_model.bin"},
		{Name: "adapter", Args: "/models/meta_adapter.bin"},
		{Name: "task", Args: "sec_regression"},
		{Name: "folds", Args: "/data/mda_fold_0,/data/mda_fold_1"},
		{Name: "loss", Args: "kpi"},
		{Name: "learning_rate", Args: "5e-5"},
		{Name: "num_train_epochs", Args: "50"},
		{Name: "comment", Args: "baseline"},
	}

	assert.Equal(t, expect, f.Commands)
}

func TestParseFileComments(t *testing.T) {
	input := `
# sweep over both loss modes
FROM /models/finbert-sec
LOSS mse
LOSS kpi # trailing text stays part of the value
`

	f, err := ParseFile(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []Command{
		{Name: "finbert", Args: "/models/finbert-sec"},
		{Name: "loss", Args: "mse"},
		{Name: "loss", Args: "kpi # trailing text stays part of the value"},
	}, f.Commands)
}

func TestParseFileQuoted(t *testing.T) {
	input := `
FROM /models/finbert-sec
COMMENT " two epochs only "
TASK """sec
regression"""
`

	f, err := ParseFile(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, " two epochs only ", f.Commands[1].Args)
	assert.Equal(t, "sec\nregression", f.Commands[2].Args)
}

func TestParseFileBOM(t *testing.T) {
	input := "\xEF\xBB\xBFFROM /models/finbert-sec\n"

	f, err := ParseFile(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, f.Commands, 1)
	assert.Equal(t, "finbert", f.Commands[0].Name)
}

func TestParseFileNoFrom(t *testing.T) {
	_, err := ParseFile(strings.NewReader("PARAMETER learning_rate 1e-4\n"))
	assert.ErrorContains(t, err, "no FROM line")
}

func TestParseFileInvalidCommand(t *testing.T) {
	_, err := ParseFile(strings.NewReader("FROM x\nEPOCHS 50\n"))
	assert.ErrorIs(t, err, errInvalidCommand)
}

func TestParseFileUnterminatedQuote(t *testing.T) {
	_, err := ParseFile(strings.NewReader("FROM x\nCOMMENT \"half open\n"))
	assert.Error(t, err)
}

func TestFileString(t *testing.T) {
	f := File{Commands: []Command{
		{Name: "finbert", Args: "/models/finbert-sec"},
		{Name: "folds", Args: "/data/mda_fold_0"},
		{Name: "learning_rate", Args: "5e-5"},
		{Name: "comment", Args: "has space "},
	}}

	want := "FROM /models/finbert-sec\nFOLDS /data/mda_fold_0\nPARAMETER learning_rate 5e-5\nCOMMENT \"has space \"\n"
	assert.Equal(t, want, f.String())
}
