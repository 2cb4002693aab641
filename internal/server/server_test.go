// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bes-catalog/internal/catalog"
	"github.com/pdiddy/bes-catalog/internal/extract"
	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

const exampleAbstract = "Power density of 1500 mW/m² was achieved at pH 7.0 and 30°C using Geobacter sulfurreducens on carbon cloth anodes."

type testEnv struct {
	srv   *httptest.Server
	store *catalog.Store
}

func newTestEnv(t *testing.T, backend extract.Backend) *testEnv {
	t.Helper()
	store, err := catalog.Open(types.CatalogConfig{DBPath: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	s := New(types.ServerConfig{}, Deps{
		Store:          store,
		Backend:        backend,
		Metrics:        metrics.New(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:         zerolog.Nop(),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) create(t *testing.T, req paperRequest) types.Paper {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/v1/papers", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var p types.Paper
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestCreateAndGetPaper(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/v1/papers", paperRequest{
		Title:    "Geobacter biofilms in microbial fuel cells",
		Abstract: exampleAbstract,
		DOI:      "https://doi.org/10.1000/ABC",
		Year:     2022,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var created types.Paper
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "10.1000/abc", created.DOI)
	assert.Equal(t, types.SourceManual, created.Source)
	require.NotNil(t, created.Relevance, "papers are scored on creation")
	assert.Equal(t, types.RecommendKeep, created.Relevance.Recommendation)
	assert.Equal(t, "/api/v1/papers/"+created.ID, resp.Header.Get("Location"))

	resp, body = env.do(t, http.MethodGet, "/api/v1/papers/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got types.Paper
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, 2022, got.Year)
}

func TestCreatePaperErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.create(t, paperRequest{Title: "First", DOI: "10.1000/dup"})

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"invalid json", "{not json", http.StatusBadRequest},
		{"missing title", paperRequest{Abstract: "x"}, http.StatusBadRequest},
		{"negative year", paperRequest{Title: "t", Year: -1}, http.StatusBadRequest},
		{"long title", paperRequest{Title: strings.Repeat("a", maxTitleLength+1)}, http.StatusBadRequest},
		{"duplicate doi", paperRequest{Title: "Second", DOI: "10.1000/DUP"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/v1/papers", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			assert.Contains(t, string(body), `"error"`)
		})
	}
}

func TestGetPaperNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodGet, "/api/v1/papers/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListPapersPaging(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, title := range []string{"Paper one", "Paper two", "Paper three"} {
		env.create(t, paperRequest{Title: title})
	}

	var page listPapersResponse
	resp, body := env.do(t, http.MethodGet, "/api/v1/papers?page_size=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page.Papers, 2)
	assert.Equal(t, 3, page.TotalCount)
	require.NotEmpty(t, page.NextPageToken)

	resp, body = env.do(t, http.MethodGet, "/api/v1/papers?page_size=2&page_token="+page.NextPageToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page = listPapersResponse{}
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page.Papers, 1)
	assert.Empty(t, page.NextPageToken)
}

func TestListPapersFilters(t *testing.T) {
	env := newTestEnv(t, nil)
	env.create(t, paperRequest{Title: "Hydrogen from a microbial electrolysis cell", SystemType: "MEC", Year: 2019})
	env.create(t, paperRequest{Title: "Stock prices", Year: 2020})

	var page listPapersResponse
	resp, body := env.do(t, http.MethodGet, "/api/v1/papers?q=hydrogen", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Papers, 1)
	assert.Equal(t, "MEC", page.Papers[0].SystemType)

	page = listPapersResponse{}
	_, body = env.do(t, http.MethodGet, "/api/v1/papers?recommendation=remove", nil)
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Papers, 1)
	assert.Equal(t, "Stock prices", page.Papers[0].Title)

	page = listPapersResponse{}
	_, body = env.do(t, http.MethodGet, "/api/v1/papers?year=2021", nil)
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Empty(t, page.Papers)
	assert.NotNil(t, page.Papers)
}

func TestListPapersBadParams(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, q := range []string{
		"page_size=0",
		"page_size=abc",
		"page_token=not-base64!",
		"page_token=" + base64.StdEncoding.EncodeToString([]byte("-4")),
		"year=twenty",
		"min_power_density=-1",
		"has_extraction=maybe",
		"recommendation=archive",
	} {
		resp, _ := env.do(t, http.MethodGet, "/api/v1/papers?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?page_size=500", nil)
	limit, offset, err := parsePagination(req)
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, limit)
	assert.Equal(t, 0, offset)

	token := base64.StdEncoding.EncodeToString([]byte("40"))
	req = httptest.NewRequest(http.MethodGet, "/x?page_token="+token, nil)
	limit, offset, err = parsePagination(req)
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize, limit)
	assert.Equal(t, 40, offset)
}

func TestEncodePageToken(t *testing.T) {
	assert.Equal(t, "", encodePageToken(0, 0, 10))
	assert.Equal(t, "", encodePageToken(8, 2, 10))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("20")), encodePageToken(0, 20, 45))
}

func TestUpdatePaper(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.create(t, paperRequest{Title: "MFC paper", Abstract: exampleAbstract})

	resp, _ := env.do(t, http.MethodPost, "/api/v1/papers/"+p.ID+"/extract", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Changing only metadata keeps the extraction.
	resp, body := env.do(t, http.MethodPut, "/api/v1/papers/"+p.ID, paperRequest{Title: "MFC paper", Abstract: exampleAbstract, Journal: "Water Research"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got types.Paper
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Water Research", got.Journal)
	assert.NotNil(t, got.ExtractedParameters)

	// A new abstract drops it.
	resp, body = env.do(t, http.MethodPut, "/api/v1/papers/"+p.ID, paperRequest{Title: "MFC paper", Abstract: "Different text."})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = types.Paper{}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Nil(t, got.ExtractedParameters)
	assert.Nil(t, got.Validation)

	resp, _ = env.do(t, http.MethodPut, "/api/v1/papers/missing", paperRequest{Title: "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeletePaper(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.create(t, paperRequest{Title: "Short lived"})

	resp, _ := env.do(t, http.MethodDelete, "/api/v1/papers/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/v1/papers/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExtractPaper(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.create(t, paperRequest{Title: "Geobacter MFC", Abstract: exampleAbstract})

	resp, body := env.do(t, http.MethodPost, "/api/v1/papers/"+p.ID+"/extract", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out extractionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Saved)
	assert.Equal(t, p.ID, out.PaperID)
	pd, ok := out.Parameters.Measurement("performanceMetrics.powerDensity")
	require.True(t, ok)
	assert.Equal(t, 1500.0, pd.Value)

	stored, err := env.store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExtractedParameters)
	require.NotNil(t, stored.Validation)
}

func TestExtractPaperNothingFound(t *testing.T) {
	env := newTestEnv(t, nil)
	p := env.create(t, paperRequest{Title: "A survey of reviews"})

	resp, body := env.do(t, http.MethodPost, "/api/v1/papers/"+p.ID+"/extract", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out extractionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Saved)
	assert.True(t, out.Parameters.IsEmpty())
}

func TestExtractText(t *testing.T) {
	env := newTestEnv(t, nil)
	abstract := exampleAbstract

	resp, body := env.do(t, http.MethodPost, "/api/v1/extract", extractTextRequest{Title: "MFC study", Abstract: &abstract})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out extractionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	temp, ok := out.Parameters.Measurement("environmental.temperature")
	require.True(t, ok)
	assert.Equal(t, types.Measurement{Value: 30, Unit: "°C"}, temp)
	assert.True(t, out.Validation.IsValid)
	require.NotNil(t, out.Relevance)
	assert.Empty(t, out.PaperID)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/extract", extractTextRequest{Title: "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type failingBackend struct{}

func (failingBackend) Name() string { return "llm" }

func (failingBackend) Extract(context.Context, types.PaperText) (types.ExtractedParameterSet, error) {
	return types.ExtractedParameterSet{}, errors.New("model offline")
}

func TestExtractBackendFailure(t *testing.T) {
	env := newTestEnv(t, failingBackend{})
	resp, body := env.do(t, http.MethodPost, "/api/v1/extract", extractTextRequest{Title: "MFC"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.NotContains(t, string(body), "model offline")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/api/v1/papers/abc", nil)

	resp, body := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `route="/api/v1/papers/{id}"`)
}
