package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/internal/application/scoring"
	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/intelligence/pka_gnn"
	"github.com/turtacn/pkasolver/internal/intelligence/sites"
	"github.com/turtacn/pkasolver/internal/interfaces/http/middleware"
	"github.com/turtacn/pkasolver/internal/testutil"
	"github.com/turtacn/pkasolver/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(svc scoring.Service) *gin.Engine {
	h := NewPKaHandler(svc, nil)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/profile", h.Profile)
	r.POST("/pair", h.Pair)
	r.GET("/profiles", h.ListProfiles)
	r.GET("/profiles/:id", h.GetProfile)
	r.GET("/models", h.Models)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestProfile_OK(t *testing.T) {
	svc := new(testutil.MockService)
	rec := &profile.Record{ID: uuid.New(), SMILES: "CC(=O)O", PH: 7.4, Entries: []profile.Entry{{Site: 3, PKa: 4.8}}}
	svc.On("Predict", mock.Anything, mock.MatchedBy(func(in *scoring.ProfileInput) bool {
		return in.SMILES == "CC(=O)O" && in.Options.Mode == sites.Exhaustive && in.Options.PH == 3.0
	})).Return(rec, nil)

	w := do(newTestRouter(svc), http.MethodPost, "/profile", `{"smiles":"CC(=O)O","ph":3.0,"mode":"exhaustive"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got profile.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, rec.ID, got.ID)
	assert.Len(t, got.Entries, 1)
	svc.AssertExpectations(t)
}

func TestProfile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		svcErr   error
		wantCode int
		wantErr  string
	}{
		{"malformed json", `{"smiles":`, nil, http.StatusBadRequest, "COMMON_002"},
		{"bad mode", `{"smiles":"C","mode":"psychic"}`, nil, http.StatusBadRequest, "COMMON_002"},
		{"ph out of range", `{"smiles":"C","ph":19}`, nil, http.StatusBadRequest, "COMMON_002"},
		{"invalid smiles", `{"smiles":"C1CC"}`, errors.NewValidationError(errors.ErrCodeMoleculeInvalidSMILES, "unclosed ring"), http.StatusBadRequest, "MOL_001"},
		{"model missing", `{"smiles":"C"}`, errors.ErrModelNotLoaded, http.StatusServiceUnavailable, "AI_001"},
		{"internal", `{"smiles":"C"}`, errors.New(errors.ErrCodeDatabaseError, "pq: connection refused"), http.StatusInternalServerError, "INFRA_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(testutil.MockService)
			if tt.svcErr != nil {
				svc.On("Predict", mock.Anything, mock.Anything).Return(nil, tt.svcErr)
			}
			w := do(newTestRouter(svc), http.MethodPost, "/profile", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantErr, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
			assert.NotContains(t, resp.Message, "connection refused")
			svc.AssertExpectations(t)
		})
	}
}

func TestPair(t *testing.T) {
	svc := new(testutil.MockService)
	svc.On("ScorePair", mock.Anything, &scoring.PairInput{Protonated: "CC(=O)O", Deprotonated: "CC(=O)[O-]", Site: -1}).
		Return(&scoring.PairResult{PKa: 4.7, Site: 3, ModelVersion: "v1"}, nil)

	r := newTestRouter(svc)
	w := do(r, http.MethodPost, "/pair", `{"protonated":"CC(=O)O","deprotonated":"CC(=O)[O-]"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res scoring.PairResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 4.7, res.PKa)

	w = do(r, http.MethodPost, "/pair", `{"protonated":"CC(=O)O"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestGetProfile(t *testing.T) {
	id := uuid.New()
	svc := new(testutil.MockService)
	svc.On("GetProfile", mock.Anything, id).Return(&profile.Record{ID: id, SMILES: "C"}, nil)
	svc.On("GetProfile", mock.Anything, mock.Anything).Return(nil, profile.ErrNotFound)

	r := newTestRouter(svc)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/profiles/"+id.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/profiles/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/profiles/not-a-uuid", "").Code)
}

func TestListProfiles(t *testing.T) {
	svc := new(testutil.MockService)
	svc.On("ListProfiles", mock.Anything, "CCO", 5).Return([]*profile.Record{{SMILES: "CCO"}}, nil)
	svc.On("ListProfiles", mock.Anything, "CCN", 0).Return(nil, nil)

	r := newTestRouter(svc)
	w := do(r, http.MethodGet, "/profiles?smiles=CCO&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list ProfileList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	w = do(r, http.MethodGet, "/profiles?smiles=CCN", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"profiles":[]`)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/profiles", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/profiles?smiles=C&limit=x", "").Code)
}

func TestModels(t *testing.T) {
	svc := new(testutil.MockService)
	svc.On("ModelInfo").Return(pka_gnn.EnsembleInfo{Version: "2024-10", SchemaVersion: "1"})

	w := do(newTestRouter(svc), http.MethodGet, "/models", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"2024-10"`)
}

//Personal.AI order the ending
