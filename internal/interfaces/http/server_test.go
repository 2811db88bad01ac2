package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkweli/amlscreen/internal/application/registry"
	"github.com/mkweli/amlscreen/internal/application/screening"
	"github.com/mkweli/amlscreen/internal/config"
	"github.com/mkweli/amlscreen/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mkweli/amlscreen/internal/infrastructure/monitoring/prometheus"
	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

type fakeScreener struct {
	result *screening.Result
	err    error
}

func (f *fakeScreener) Screen(context.Context, screening.Query) (*screening.Result, error) {
	return f.result, f.err
}

type fakeBatch struct {
	result *screening.BatchResult
	err    error
}

func (f *fakeBatch) ScreenBatch(context.Context, []screening.Row) (*screening.BatchResult, error) {
	return f.result, f.err
}

type fakeRepo struct {
	summary   *registry.ReloadSummary
	reloadErr error
	forced    []types.SourceList
	status    registry.Status
	invErr    error
}

func (f *fakeRepo) Reload(_ context.Context, forced ...types.SourceList) (*registry.ReloadSummary, error) {
	f.forced = forced
	return f.summary, f.reloadErr
}
func (f *fakeRepo) Status() registry.Status   { return f.status }
func (f *fakeRepo) InvalidateSnapshot() error { return f.invErr }

func testRouter(t *testing.T, screener Screener, batch BatchScreener, repo RepositoryService) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.Mode = "test"
	logger := logging.NewNopLogger()
	h := NewHandler(cfg, screener, batch, repo, logger)
	return NewRouter(cfg, h, prommetrics.New(), logger)
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestScreenEndpoint(t *testing.T) {
	screener := &fakeScreener{result: &screening.Result{
		NormalizedQuery: "jon smith",
		Threshold:       70,
		Matches: []screening.Match{{
			RecordID: "OFAC-9639",
			Source:   types.SourceOFAC,
			Score:    100,
			Layer:    types.LayerExact,
		}},
	}}
	router := testRouter(t, screener, &fakeBatch{}, &fakeRepo{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/screen", `{"name":"Jon Smith"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res screening.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "jon smith", res.NormalizedQuery)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "OFAC-9639", res.Matches[0].RecordID)
}

func TestScreenBadRequest(t *testing.T) {
	router := testRouter(t, &fakeScreener{}, &fakeBatch{}, &fakeRepo{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/screen", `{"name": 12`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeInvalidParam.String(), body.Code)
}

func TestScreenEmptyQueryMapsTo400(t *testing.T) {
	screener := &fakeScreener{err: errors.New(errors.CodeEmptyQuery, "query name is empty after normalization")}
	router := testRouter(t, screener, &fakeBatch{}, &fakeRepo{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/screen", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchEndpoint(t *testing.T) {
	batch := &fakeBatch{result: &screening.BatchResult{
		BatchID:  "b-1",
		RowCount: 2,
		HitRows:  1,
	}}
	router := testRouter(t, &fakeScreener{}, batch, &fakeRepo{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/screen/batch",
		`{"rows":[{"row_id":"1","query":{"name":"a b"}},{"row_id":"2","query":{"name":"c d"}}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res screening.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 2, res.RowCount)
}

func TestBatchTooLargeMapsTo400(t *testing.T) {
	batch := &fakeBatch{err: errors.New(errors.CodeBatchTooLarge, "batch of 9000 rows exceeds the limit of 5000")}
	router := testRouter(t, &fakeScreener{}, batch, &fakeRepo{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/screen/batch", `{"rows":[{"row_id":"1","query":{"name":"x y"}}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeBatchTooLarge.String(), body.Code)
}

func TestReloadEndpoint(t *testing.T) {
	repo := &fakeRepo{summary: &registry.ReloadSummary{TotalRecords: 42, LoadedAt: time.Now()}}
	router := testRouter(t, &fakeScreener{}, &fakeBatch{}, repo)

	w := doJSON(t, router, http.MethodPost, "/api/v1/reload?forced=all", "")
	require.Equal(t, http.StatusOK, w.Code)

	var summary registry.ReloadSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 42, summary.TotalRecords)
	assert.Equal(t, types.AllSources, repo.forced)
}

func TestReloadForcedSourceList(t *testing.T) {
	repo := &fakeRepo{summary: &registry.ReloadSummary{}}
	router := testRouter(t, &fakeScreener{}, &fakeBatch{}, repo)

	w := doJSON(t, router, http.MethodPost, "/api/v1/reload?forced=UN,OFAC", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []types.SourceList{types.SourceUN, types.SourceOFAC}, repo.forced)
}

func TestReloadInvalidForcedSource(t *testing.T) {
	router := testRouter(t, &fakeScreener{}, &fakeBatch{}, &fakeRepo{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/reload?forced=INTERPOL", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeInvalidParam.String(), body.Code)
}

func TestReloadConflictMapsTo409(t *testing.T) {
	repo := &fakeRepo{reloadErr: errors.New(errors.CodeReloadInProgress, "a reload is already running")}
	router := testRouter(t, &fakeScreener{}, &fakeBatch{}, repo)

	w := doJSON(t, router, http.MethodPost, "/api/v1/reload", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	repo := &fakeRepo{status: registry.Status{
		Ready:        true,
		TotalRecords: 7,
		Fingerprint:  "gen-1",
	}}
	router := testRouter(t, &fakeScreener{}, &fakeBatch{}, repo)

	w := doJSON(t, router, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var st registry.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Ready)
	assert.Equal(t, 7, st.TotalRecords)
}

func TestSnapshotInvalidation(t *testing.T) {
	router := testRouter(t, &fakeScreener{}, &fakeBatch{}, &fakeRepo{})
	w := doJSON(t, router, http.MethodDelete, "/api/v1/snapshot", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHealthz(t *testing.T) {
	router := testRouter(t, &fakeScreener{}, &fakeBatch{}, &fakeRepo{status: registry.Status{Ready: true}})

	w := doJSON(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready":true`)
}

func TestMetricsEndpointExposed(t *testing.T) {
	router := testRouter(t, &fakeScreener{}, &fakeBatch{}, &fakeRepo{})
	w := doJSON(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInternalErrorIsMasked(t *testing.T) {
	screener := &fakeScreener{err: errors.New(errors.CodeInternal, "index pointer corrupted at 0xdeadbeef")}
	router := testRouter(t, screener, &fakeBatch{}, &fakeRepo{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/screen", `{"name":"x y"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "0xdeadbeef")
}
