package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/internal/config"
	"github.com/turtacn/pkasolver/internal/infrastructure/storage"
	"github.com/turtacn/pkasolver/internal/intelligence/pka_gnn"
	"github.com/turtacn/pkasolver/internal/testutil"
	"github.com/turtacn/pkasolver/pkg/errors"
)

func writeDataset(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "set.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestTrain_EndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	cfg := writeConfig(t, dataDir, "")
	train := writeDataset(t,
		`{"protonated":"CC(=O)O","deprotonated":"CC(=O)[O-]","pka":4.76}`,
		`{"protonated":"C1CC[NH2+]CC1","deprotonated":"C1CCNCC1","pka":11.1}`,
		`# comment lines are ignored`,
		`{"protonated":"Oc1ccccc1","deprotonated":"[O-]c1ccccc1","pka":9.99}`,
		`{"protonated":"not a smiles","deprotonated":"C","pka":1.0,"id":"bad"}`,
	)
	val := writeDataset(t,
		`{"protonated":"c1cc[nH+]cc1","deprotonated":"c1ccncc1","pka":5.25}`,
		`{"protonated":"C[NH3+]","deprotonated":"CN","pka":10.6}`,
	)

	out, err := execute(t, "--config", cfg, "-o", "json", "train",
		"--data", train, "--val", val, "--members", "2", "--seed", "11", "--output-key", "models/trained.json.gz")
	require.NoError(t, err)

	var res trainResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, "models/trained.json.gz", res.Output)
	assert.Equal(t, 3, res.Train)
	assert.Equal(t, 2, res.Val)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Members, 2)
	for i, m := range res.Members {
		assert.Equal(t, i, m.Index)
		assert.Equal(t, int64(11+i), m.Seed)
		assert.GreaterOrEqual(t, m.BestEpoch, 0)
		assert.Len(t, m.Progress.ValidationSet, 3)
	}

	local, err := storage.NewLocalStore(dataDir)
	require.NoError(t, err)
	store := storage.NewArtifactStore(local)
	ens, err := store.LoadEnsemble(context.Background(), "models/trained.json.gz", "trained")
	require.NoError(t, err)
	assert.Equal(t, 2, ens.Size())

	keys, err := store.Keys(context.Background(), "checkpoints")
	require.NoError(t, err)
	assert.Equal(t, []string{"checkpoints/test-m0.json.gz", "checkpoints/test-m1.json.gz"}, keys)
}

func TestTrain_Resume(t *testing.T) {
	dataDir := t.TempDir()
	cfg := writeConfig(t, dataDir, "")
	train := writeDataset(t,
		`{"protonated":"CC(=O)O","deprotonated":"CC(=O)[O-]","pka":4.76}`,
		`{"protonated":"Oc1ccccc1","deprotonated":"[O-]c1ccccc1","pka":9.99}`,
	)
	val := writeDataset(t, `{"protonated":"C[NH3+]","deprotonated":"CN","pka":10.6}`)

	_, err := execute(t, "--config", cfg, "train", "--data", train, "--val", val, "--epochs", "1")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "-o", "json", "train", "--data", train, "--val", val, "--epochs", "3", "--resume")
	require.NoError(t, err)
	var res trainResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Members, 1)
	assert.Len(t, res.Members[0].Progress.ValidationSet, 2, "epochs 2 and 3 only")
}

func TestTrain_Validation(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	set := writeDataset(t, `{"protonated":"CC(=O)O","deprotonated":"CC(=O)[O-]","pka":4.76}`)

	_, err := execute(t, "--config", cfg, "train", "--val", set)
	assert.Error(t, err, "--data is required")

	_, err = execute(t, "--config", cfg, "train", "--data", set, "--val", set, "--members", "0")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = execute(t, "--config", cfg, "train", "--data", set, "--val", set, "--members", "2", "--resume")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = execute(t, "--config", cfg, "train", "--data", set, "--val", set, "--variant", "transformer")
	require.Error(t, err)

	_, err = execute(t, "--config", cfg, "train", "--data", filepath.Join(t.TempDir(), "none.jsonl"), "--val", set)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIDatasetInvalid))
}

func TestMemberCheckpointKey(t *testing.T) {
	assert.Equal(t, "checkpoints/run-m0.json.gz", memberCheckpointKey("checkpoints/run.json.gz", 0))
	assert.Equal(t, "a.b/run-m2", memberCheckpointKey("a.b/run", 2))
	assert.Equal(t, "run-m1.bin", memberCheckpointKey("run.bin", 1))
}

func TestMigrate_ArgumentValidation(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")

	_, err := execute(t, "--config", cfg, "migrate", "reset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	_, err = execute(t, "--config", cfg, "migrate", "down", "zero")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = execute(t, "--config", cfg, "migrate", "force", "-5")
	require.Error(t, err)

	_, err = execute(t, "--config", cfg, "migrate", "up", "extra")
	assert.Error(t, err)
}

func TestMigrationStatus_Text(t *testing.T) {
	s := &migrationStatus{Version: 2, Dirty: true, Available: []string{"a", "b"}}
	assert.Equal(t, "Schema version 2 (dirty), 2 migration(s) available\n", s.String())
}

func TestWorker_RequiresKafka(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "")
	_, err := execute(t, "--config", cfg, "worker")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestNewRouter_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.LocalDir = t.TempDir()
	cfg.Server.Mode = "test"
	cfg.Server.RateLimitRPS = 1
	cfg.Server.RateLimitBurst = 1
	cfg.Server.CORSOrigins = []string{"*.example.com"}

	comps, err := buildComponents(context.Background(), cfg, testutil.NewMockLogger())
	require.NoError(t, err)
	defer comps.Close()
	require.NotNil(t, comps.collector)

	svc := new(testutil.MockService)
	svc.On("ModelInfo").Return(pka_gnn.EnsembleInfo{Version: "v1"})

	router, limiter := newRouter(comps, svc)
	require.NotNil(t, limiter)
	defer limiter.Stop()

	get := func(path string, header ...string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if len(header) == 2 {
			req.Header.Set(header[0], header[1])
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, get("/healthz").Code)
	assert.Equal(t, http.StatusOK, get("/healthz").Code, "probes bypass the limiter")
	assert.Equal(t, http.StatusOK, get("/metrics").Code)

	first := get("/api/v1/models", "Origin", "https://app.example.com")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "https://app.example.com", first.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusTooManyRequests, get("/api/v1/models").Code)
	svc.AssertNumberOfCalls(t, "ModelInfo", 1)
	svc.AssertExpectations(t)
}

func TestBuildComponents_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "tape"
	_, err := buildComponents(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestGinMode(t *testing.T) {
	assert.Equal(t, "debug", ginMode("debug"))
	assert.Equal(t, "test", ginMode("test"))
	assert.Equal(t, "release", ginMode("production"))
}

//Personal.AI order the ending
