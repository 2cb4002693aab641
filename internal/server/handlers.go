// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pdiddy/bes-catalog/internal/catalog"
	"github.com/pdiddy/bes-catalog/internal/extract"
	"github.com/pdiddy/bes-catalog/internal/score"
	"github.com/pdiddy/bes-catalog/internal/validate"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 20
	maxPageSize        = 100
	maxTitleLength     = 1000
	maxAbstractLength  = 50000
	maxRequestBodySize = 1 << 20
)

// paperRequest is the JSON body for creating or replacing a paper.
type paperRequest struct {
	DOI           string   `json:"doi"`
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	Authors       []string `json:"authors"`
	Journal       string   `json:"journal"`
	Year          int      `json:"year"`
	Keywords      string   `json:"keywords"`
	OrganismTypes string   `json:"organism_types"`
	SystemType    string   `json:"system_type"`
	Source        string   `json:"source"`
	SourceURL     string   `json:"source_url"`
}

func (req *paperRequest) validate() error {
	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.Title == "":
		return fmt.Errorf("title is required")
	case len(req.Title) > maxTitleLength:
		return fmt.Errorf("title must be at most %d characters", maxTitleLength)
	case len(req.Abstract) > maxAbstractLength:
		return fmt.Errorf("abstract must be at most %d characters", maxAbstractLength)
	case req.Year < 0:
		return fmt.Errorf("year must not be negative")
	}
	return nil
}

func (req paperRequest) apply(p *types.Paper) {
	p.DOI = req.DOI
	p.Title = req.Title
	p.Abstract = strings.TrimSpace(req.Abstract)
	p.Authors = req.Authors
	p.Journal = req.Journal
	p.Year = req.Year
	p.Keywords = req.Keywords
	p.OrganismTypes = req.OrganismTypes
	p.SystemType = req.SystemType
	p.SourceURL = req.SourceURL
	if req.Source != "" {
		p.Source = req.Source
	}
	if p.Source == "" {
		p.Source = types.SourceManual
	}
}

// listPapersResponse is one page of papers.
type listPapersResponse struct {
	Papers        []types.Paper `json:"papers"`
	NextPageToken string        `json:"next_page_token,omitempty"`
	TotalCount    int           `json:"total_count"`
}

// extractTextRequest is the body of an ad-hoc extraction.
type extractTextRequest struct {
	Title    string  `json:"title"`
	Abstract *string `json:"abstract"`
}

// extractionResponse carries an extraction with its validation and, for
// ad-hoc text, its relevance.
type extractionResponse struct {
	PaperID    string                      `json:"paper_id,omitempty"`
	Parameters types.ExtractedParameterSet `json:"parameters"`
	Validation types.ValidationResult      `json:"validation"`
	Relevance  *types.RelevanceScore       `json:"relevance,omitempty"`
	Saved      bool                        `json:"saved"`
}

// listPapers handles GET /api/v1/papers.
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	papers, total, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if papers == nil {
		papers = []types.Paper{}
	}

	writeJSON(w, http.StatusOK, listPapersResponse{
		Papers:        papers,
		NextPageToken: encodePageToken(opts.Offset, len(papers), total),
		TotalCount:    total,
	})
}

func parseListOptions(r *http.Request) (catalog.ListOptions, error) {
	q := r.URL.Query()
	limit, offset, err := parsePagination(r)
	if err != nil {
		return catalog.ListOptions{}, err
	}

	opts := catalog.ListOptions{
		Query:      q.Get("q"),
		SystemType: q.Get("system_type"),
		Source:     q.Get("source"),
		Limit:      limit,
		Offset:     offset,
	}

	if v := q.Get("recommendation"); v != "" {
		rec := types.Recommendation(v)
		switch rec {
		case types.RecommendKeep, types.RecommendRemove, types.RecommendReview:
			opts.Recommendation = rec
		default:
			return opts, fmt.Errorf("invalid recommendation %q", v)
		}
	}
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid year %q", v)
		}
		opts.Year = year
	}
	if v := q.Get("min_power_density"); v != "" {
		pd, err := strconv.ParseFloat(v, 64)
		if err != nil || pd < 0 {
			return opts, fmt.Errorf("invalid min_power_density %q", v)
		}
		opts.MinPowerDensity = pd
	}
	if v := q.Get("has_extraction"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid has_extraction %q", v)
		}
		opts.HasExtraction = &b
	}
	return opts, nil
}

// parsePagination extracts page_size and page_token from query parameters.
// It applies default and maximum bounds to the page size.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageSize
	if v := r.URL.Query().Get("page_size"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("invalid page_size %q", v)
		}
		limit = parsed
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if token := r.URL.Query().Get("page_token"); token != "" {
		decoded, err := base64.StdEncoding.DecodeString(token)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid page_token")
		}
		parsed, err := strconv.Atoi(string(decoded))
		if err != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid page_token")
		}
		offset = parsed
	}
	return limit, offset, nil
}

// encodePageToken encodes the next offset as a base64 page token. Returns
// an empty string if there are no more results.
func encodePageToken(offset, returned, total int) string {
	next := offset + returned
	if returned == 0 || next >= total {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(next)))
}

// createPaper handles POST /api/v1/papers. The paper is scored on creation.
func (s *Server) createPaper(w http.ResponseWriter, r *http.Request) {
	var req paperRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var p types.Paper
	req.apply(&p)
	rel := score.Score(p.ScoreInput())
	p.Relevance = &rel

	if err := s.store.Create(r.Context(), &p); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.metrics.Paper("api", "created")
	w.Header().Set("Location", "/api/v1/papers/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

// getPaper handles GET /api/v1/papers/{id}.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// updatePaper handles PUT /api/v1/papers/{id}. Bibliographic fields are
// replaced and the paper is re-scored. A changed title or abstract drops
// the stored extraction since it no longer describes the text.
func (s *Server) updatePaper(w http.ResponseWriter, r *http.Request) {
	var req paperRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	oldTitle, oldAbstract := p.Title, p.Abstract
	req.apply(&p)
	if p.Title != oldTitle || p.Abstract != oldAbstract {
		p.ExtractedParameters = nil
		p.Validation = nil
	}
	rel := score.Score(p.ScoreInput())
	p.Relevance = &rel

	if err := s.store.Update(r.Context(), &p); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// deletePaper handles DELETE /api/v1/papers/{id}.
func (s *Server) deletePaper(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// extractPaper handles POST /api/v1/papers/{id}/extract. A non-empty
// result is validated and stored.
func (s *Server) extractPaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	set, ok := s.runExtraction(w, r, p.Text())
	if !ok {
		return
	}
	res := validate.Validate(set)

	resp := extractionResponse{PaperID: p.ID, Parameters: set, Validation: res}
	if !set.IsEmpty() {
		if err := s.store.SaveExtraction(ctx, p.ID, &set, &res); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		resp.Saved = true
		s.metrics.Paper("api", "extracted")
	}
	writeJSON(w, http.StatusOK, resp)
}

// extractText handles POST /api/v1/extract: parameters, validation and
// relevance for text that is not in the catalog.
func (s *Server) extractText(w http.ResponseWriter, r *http.Request) {
	var req extractTextRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" && (req.Abstract == nil || strings.TrimSpace(*req.Abstract) == "") {
		writeError(w, http.StatusBadRequest, "title or abstract is required")
		return
	}

	text := types.PaperText{Title: req.Title, Abstract: req.Abstract}
	set, ok := s.runExtraction(w, r, text)
	if !ok {
		return
	}

	in := types.ScoreInput{Title: req.Title}
	if req.Abstract != nil {
		in.Abstract = *req.Abstract
	}
	rel := score.Score(in)

	writeJSON(w, http.StatusOK, extractionResponse{
		Parameters: set,
		Validation: validate.Validate(set),
		Relevance:  &rel,
	})
}

func (s *Server) runExtraction(w http.ResponseWriter, r *http.Request, text types.PaperText) (types.ExtractedParameterSet, bool) {
	start := time.Now()
	set, err := s.backend.Extract(r.Context(), text)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("backend", s.backend.Name()).Msg("extraction failed")
		writeError(w, http.StatusBadGateway, "extraction backend failed")
		return set, false
	}
	s.metrics.Extraction(s.backend.Name(), time.Since(start), extract.Leaves(set))
	return set, true
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return fmt.Errorf("failed to read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON request body")
	}
	return nil
}
