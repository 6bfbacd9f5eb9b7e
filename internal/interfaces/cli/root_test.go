package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/infrastructure/storage"
	"github.com/turtacn/pkasolver/internal/intelligence/pka_gnn"
	"github.com/turtacn/pkasolver/pkg/errors"
)

const testArtifactKey = "models/test.json.gz"

// writeConfig writes a config file whose local store lives in dataDir.
func writeConfig(t *testing.T, dataDir, extra string) string {
	t.Helper()
	body := `
log:
  level: error
  format: console
metrics:
  enabled: false
storage:
  backend: local
  local_dir: ` + dataDir + `
model:
  artifact_key: ` + testArtifactKey + `
  version: test-v1
training:
  num_layers: 1
  embedding_dim: 4
  head_dim: 3
  dropout: 0
  max_epochs: 2
  eval_every: 1
  batch_size: 2
  checkpoint_key: checkpoints/test.json.gz
` + extra
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func saveTinyEnsemble(t *testing.T, dataDir string) {
	t.Helper()
	hp := pka_gnn.DefaultHyperparameters()
	hp.NumLayers = 1
	hp.EmbeddingDim = 4
	hp.HeadDim = 3
	f, err := hp.Featurizer()
	require.NoError(t, err)
	r, err := pka_gnn.NewRegressor(hp, f.NodeDim(), f.EdgeDim())
	require.NoError(t, err)

	local, err := storage.NewLocalStore(dataDir)
	require.NoError(t, err)
	require.NoError(t, storage.NewArtifactStore(local).SaveArtifact(context.Background(), testArtifactKey, pka_gnn.NewArtifact(r)))
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "pkasolver", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"predict", "train", "serve", "worker", "migrate", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	pf := cmd.PersistentFlags()
	require.NotNil(t, pf.Lookup("config"))
	require.NotNil(t, pf.Lookup("log-level"))
	out := pf.Lookup("output")
	require.NotNil(t, out)
	assert.Equal(t, "text", out.DefValue)
	assert.Equal(t, "o", out.Shorthand)
}

func TestRoot_RejectsUnknownOutputFormat(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	_, err := execute(t, "--config", cfg, "--output", "yaml", "version")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRoot_RejectsUnknownLogLevel(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	_, err := execute(t, "--config", cfg, "--log-level", "loud", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config initialization failed")
}

func TestVersion_JSON(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	out, err := execute(t, "--config", cfg, "-o", "json", "version")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, Version, got["version"])
	assert.Equal(t, GitCommit, got["commit"])
	assert.NotEmpty(t, got["go_version"])
	assert.Contains(t, got["platform"], "/")
}

func TestVersion_Text(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	out, err := execute(t, "--config", cfg, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pkasolver "+Version))
}

func TestFormatTable(t *testing.T) {
	got := FormatTable([]string{"SITE", "PKA", "SMILES"}, [][]string{
		{"3", "4.76", "CC(=O)[O-]"},
		{"12", "10.60"},
	})
	want := "SITE  PKA    SMILES\n" +
		"----  -----  ----------\n" +
		"3     4.76   CC(=O)[O-]\n" +
		"12    10.60  \n"
	assert.Equal(t, want, got)
	assert.Empty(t, FormatTable(nil, nil))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab  ", padRight("ab", 4))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
}

func TestPrintError_IncludesCode(t *testing.T) {
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetErr(&buf)

	PrintError(cmd, errors.New(errors.ErrCodeNotFound, "no such profile"))
	assert.Contains(t, buf.String(), "Error [COMMON_005]")

	buf.Reset()
	PrintError(cmd, assert.AnError)
	assert.Equal(t, "Error: "+assert.AnError.Error()+"\n", buf.String())

	buf.Reset()
	PrintError(cmd, nil)
	assert.Empty(t, buf.String())
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetContext(context.Background())
	_, err := GetCLIContext(cmd)
	assert.Error(t, err)
}

func TestPredict_EndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	saveTinyEnsemble(t, dataDir)
	cfg := writeConfig(t, dataDir, "")

	out, err := execute(t, "--config", cfg, "-o", "json", "predict", "--smiles", "OC(=O)CC[NH3+]", "--ph", "7.0", "--open-window")
	require.NoError(t, err)

	var rec profile.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec), out)
	assert.NotEmpty(t, rec.SMILES)
	assert.Equal(t, "test-v1", rec.ModelVersion)
	assert.InDelta(t, 7.0, rec.PH, 1e-9)
	assert.NoError(t, rec.Validate())

	table, err := execute(t, "--config", cfg, "-o", "table", "predict", "--smiles", "CC(=O)O")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(table, "STEP"), table)
}

func TestPredict_Flags(t *testing.T) {
	dataDir := t.TempDir()
	cfg := writeConfig(t, dataDir, "")

	_, err := execute(t, "--config", cfg, "predict")
	assert.Error(t, err, "one of --smiles or --molblock is required")

	_, err = execute(t, "--config", cfg, "predict", "--smiles", "C", "--molblock", "x.mol")
	assert.Error(t, err)

	_, err = execute(t, "--config", cfg, "predict", "--smiles", "C", "--mode", "every")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = execute(t, "--config", cfg, "predict", "--smiles", "C", "--ph", "15")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestPredict_MissingModel(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	_, err := execute(t, "--config", cfg, "predict", "--smiles", "CC(=O)O")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactNotFound))
}

func TestProfileView_Text(t *testing.T) {
	v := &profileView{&profile.Record{
		SMILES:       "CC(=O)O",
		PH:           7.4,
		Mode:         "rule_filtered",
		ModelVersion: "v1",
		Entries:      []profile.Entry{{Site: 3, PKa: 4.76, Protonated: "CC(=O)O", Deprotonated: "CC(=O)[O-]"}},
		Skipped:      1,
	}}
	s := v.String()
	assert.Contains(t, s, "1. pKa 4.76 at atom 3: CC(=O)O -> CC(=O)[O-]")
	assert.Contains(t, s, "1 candidate(s) skipped")
	assert.Equal(t, [][]string{{"1", "3", "4.76", "CC(=O)O", "CC(=O)[O-]"}}, v.TableRows())

	empty := &profileView{&profile.Record{SMILES: "C"}}
	assert.Contains(t, empty.String(), "No protonation steps found.")
}

//Personal.AI order the ending
