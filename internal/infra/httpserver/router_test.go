package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appamend "github.com/JadsonMattos/vigia-pix/internal/application/amendments"
	domain "github.com/JadsonMattos/vigia-pix/internal/domain/amendments"
	"github.com/JadsonMattos/vigia-pix/internal/domain/ledger"
)

type memRepo struct {
	mu    sync.Mutex
	items map[domain.ID]*domain.Amendment
}

func (r *memRepo) Get(_ context.Context, id domain.ID) (*domain.Amendment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.items[id]; ok {
		return a.Clone(), nil
	}
	return nil, domain.ErrNotFound
}

func (r *memRepo) FindByNumber(_ context.Context, number string, year int) (*domain.Amendment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.items {
		if a.Number == number && a.Year == year {
			return a.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memRepo) Save(_ context.Context, a *domain.Amendment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[a.ID] = a.Clone()
	return nil
}

func (r *memRepo) List(_ context.Context, f domain.ListFilter) (domain.PaginatedResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := domain.PaginatedResult{Page: f.Page, PageSize: f.PageSize, Data: []*domain.Amendment{}}
	for _, a := range r.items {
		res.Data = append(res.Data, a.Clone())
	}
	res.Total = int64(len(res.Data))
	res.TotalPages = 1
	return res, nil
}

type memBlocks struct {
	mu     sync.Mutex
	blocks []ledger.Block
}

func (m *memBlocks) AppendBlock(_ context.Context, b ledger.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, b)
	return nil
}

func (m *memBlocks) Blocks(context.Context) ([]ledger.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Block(nil), m.blocks...), nil
}

type memPhotos struct{}

func (memPhotos) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	return "http://minio/evidence/" + key, nil
}

func (memPhotos) Remove(context.Context, string) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *memRepo) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &memRepo{items: map[domain.ID]*domain.Amendment{}}
	svc := appamend.NewService(repo, ledger.New(&memBlocks{}), nil, logger)
	svc.Photos = memPhotos{}

	h, err := NewRouter(Options{Service: svc, Logger: logger})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, repo
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

const ingestBody = `{
  "number": "202400042",
  "year": 2024,
  "type": "individual",
  "status": "executing",
  "objective": "Construção de unidade básica de saúde",
  "author": {"name": "Dep. Fulana", "uf": "BA"},
  "recipient": {"name": "Prefeitura de Salvador", "uf": "BA", "municipality": "Salvador"},
  "financials": {"approved": 50000000, "paid": 10000000},
  "planned_completion": "2024-01-31T00:00:00Z",
  "milestones": [{"sequence": 1, "description": "Fundação", "value": 100, "status": "pending"}]
}`

func TestRouter_IngestAnalyzeAudit(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/amendments", ingestBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ingest appamend.IngestResult
	decode(t, resp, &ingest)
	id := string(ingest.Amendment.ID)
	require.NotEmpty(t, id)

	// re-ingest is an update
	resp = postJSON(t, srv.URL+"/v1/amendments", ingestBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/amendments/"+id+"/analyze", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var analyzed domain.Amendment
	decode(t, resp, &analyzed)
	require.NotNil(t, analyzed.Analysis)
	assert.True(t, analyzed.Analysis.Late)
	assert.True(t, domain.HasAlert(analyzed.Alerts, domain.AlertHighDeviationRisk))

	resp, err := http.Get(srv.URL + "/v1/amendments/" + id + "/trust-score")
	require.NoError(t, err)
	var score domain.TrustScore
	decode(t, resp, &score)
	assert.Contains(t, []domain.TrustLevel{domain.LevelPoor, domain.LevelCritical}, score.Level)

	resp = postJSON(t, srv.URL+"/v1/amendments/"+id+"/milestones/1/complete", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/v1/amendments/" + id + "/audit")
	require.NoError(t, err)
	var trail ledger.AuditTrail
	decode(t, resp, &trail)
	assert.True(t, trail.ChainValid)
	// creation, analysis, two alerts, milestone
	assert.Equal(t, 5, trail.TotalTransactions)

	resp, err = http.Get(srv.URL + "/v1/ledger/verify")
	require.NoError(t, err)
	var report ledger.Report
	decode(t, resp, &report)
	assert.True(t, report.Valid)
	assert.Equal(t, 5, report.Total)
}

func TestRouter_IngestRejectsInvalidPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/amendments", `{"number": "1", "year": 1500, "financials": {"approved": -1, "paid": 0}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Contains(t, body["error"], "/year")
	assert.Contains(t, body["error"], "/financials/approved")

	resp = postJSON(t, srv.URL+"/v1/amendments", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/amendments",
		`{"number": "9", "year": 2024, "financials": {"approved": 1, "paid": 0}, "documents": [{"kind": "report", "url": "ftp://files/r.pdf"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decode(t, resp, &body)
	assert.Contains(t, body["error"], "documents[0]")
}

func TestRouter_NotFoundAndBadID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/amendments/unknown-id")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/amendments/bad%20id/analyze", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_Geofence(t *testing.T) {
	srv, repo := newTestServer(t)
	repo.items["g-1"] = &domain.Amendment{
		ID: "g-1", Number: "1", Year: 2024,
		Recipient: domain.Recipient{Location: &domain.Coordinates{Lat: -15.7939, Lon: -47.8828}},
	}

	resp := postJSON(t, srv.URL+"/v1/amendments/g-1/geofence/validate",
		`{"location": {"lat": -15.6590, "lon": -47.8828}, "tolerance_km": 20}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var verdict map[string]any
	decode(t, resp, &verdict)
	assert.Equal(t, "inside", verdict["outcome"])
	assert.Equal(t, true, verdict["valid"])

	resp = postJSON(t, srv.URL+"/v1/amendments/g-1/geofence/validate", `{"location": {"lat": 95, "lon": 0}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/amendments/g-1/geofence/validate-batch",
		`{"photos": [{"id": "a", "location": {"lat": -15.7939, "lon": -47.8828}}, {"id": "b"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var batch map[string]any
	decode(t, resp, &batch)
	assert.Equal(t, false, batch["all_valid"])
	assert.Equal(t, float64(1), batch["missing"])
}

func TestRouter_UploadPhoto(t *testing.T) {
	srv, repo := newTestServer(t)
	repo.items["p-1"] = &domain.Amendment{
		ID: "p-1", Number: "1", Year: 2024,
		Recipient: domain.Recipient{Municipality: "Salvador", UF: "BA"},
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("photo", "obra.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("not really a jpeg"))
	require.NoError(t, mw.WriteField("lat", "-12.9714"))
	require.NoError(t, mw.WriteField("lon", "-38.5014"))
	require.NoError(t, mw.WriteField("kind", "progress"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/v1/amendments/p-1/photos", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var res appamend.UploadPhotoResult
	decode(t, resp, &res)
	assert.Equal(t, domain.ProvenanceProvided, res.Photo.Provenance)
	assert.True(t, strings.HasPrefix(res.Photo.URL, "http://minio/evidence/amendments/p-1/photos/"))
	require.NotNil(t, res.GeofenceValid)
	assert.True(t, *res.GeofenceValid)
}

func TestRouter_BatchAndList(t *testing.T) {
	srv, repo := newTestServer(t)
	repo.items["b-1"] = &domain.Amendment{ID: "b-1", Number: "1", Year: 2024, Financials: domain.Financials{Approved: 10, Paid: 10}}
	repo.items["b-2"] = &domain.Amendment{ID: "b-2", Number: "2", Year: 2024}

	resp := postJSON(t, srv.URL+"/v1/amendments/analyze-batch", `{"ids": ["b-1", "b-2", "b-3"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report appamend.BatchReport
	decode(t, resp, &report)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Analyzed)
	assert.Equal(t, 1, report.NotFound)

	resp, err := http.Get(srv.URL + "/v1/amendments?page=1&page_size=10")
	require.NoError(t, err)
	var list domain.PaginatedResult
	decode(t, resp, &list)
	assert.Equal(t, int64(2), list.Total)

	resp, err = http.Get(srv.URL + "/v1/amendments?uf=XYZ")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/health", "/healthz", "/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(&ledger.IntegrityError{Index: 2, Reason: "hash mismatch"}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(domain.ErrEnrichmentUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.ErrPersistence))
}
