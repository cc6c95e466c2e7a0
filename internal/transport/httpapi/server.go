// Package httpapi exposes the card search service over HTTP with chi.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/deckforge/cardindex/internal/analysis"
	"github.com/deckforge/cardindex/internal/cache"
	"github.com/deckforge/cardindex/internal/corpus"
	"github.com/deckforge/cardindex/internal/domain"
	"github.com/deckforge/cardindex/internal/metrics"
	"github.com/deckforge/cardindex/internal/search"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest          = "bad_request"
	codeInvalidQuery        = "invalid_query"
	codeCardNotFound        = "card_not_found"
	codeCorpusNotFound      = "corpus_not_found"
	codeAnalysisUnavailable = "analysis_unavailable"
	codeInternalError       = "internal_error"
)

// analyzeCandidateLimit caps how many search hits are handed to the
// model for commander analysis.
const analyzeCandidateLimit = 15

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Analyzer is the commander analysis the server depends on.
type Analyzer interface {
	Enabled() bool
	AnalyzeCommanders(ctx context.Context, strategy string, candidates []domain.Card) (analysis.Result, error)
}

// Server wires the corpus, search engine, result cache, and commander
// analyzer into HTTP handlers.
type Server struct {
	corpus        *corpus.Corpus
	engine        *search.Engine
	cache         *cache.Cache
	analyzer      Analyzer
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(
	c *corpus.Corpus,
	engine *search.Engine,
	resultCache *cache.Cache,
	analyzer Analyzer,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		corpus:   c,
		engine:   engine,
		cache:    resultCache,
		analyzer: analyzer,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrCardNotFound, http.StatusNotFound, codeCardNotFound),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrCorpusNotFound, http.StatusServiceUnavailable, codeCorpusNotFound),
		sentinelHandler(domain.ErrAnalysisUnavailable, http.StatusServiceUnavailable, codeAnalysisUnavailable),
	}
	return s
}

// Router assembles the chi router with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Route("/api/cards", func(r chi.Router) {
		r.Post("/search", s.SearchCards)
		r.Get("/by-color", s.CardsByColor)
		r.Get("/by-type", s.CardsByType)
		r.Get("/by-cmc", s.CardsByCMC)
		r.Get("/random", s.RandomCards)
		r.Get("/details/{id}", s.CardDetails)
		r.Get("/{id}/similar", s.SimilarCards)
	})
	r.Post("/api/commanders/analyze", s.AnalyzeCommanders)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	return r
}

type searchRequest struct {
	Query   string         `json:"query"`
	Options search.Options `json:"options"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Results []search.Match `json:"results"`
}

// SearchCards handles POST /api/cards/search.
func (s *Server) SearchCards(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "Query is required")
		return
	}

	results, err := s.cachedSearch(req.Query, req.Options)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:   req.Query,
		Count:   len(results),
		Results: results,
	})
}

func (s *Server) cachedSearch(query string, opts search.Options) ([]search.Match, error) {
	if s.cache == nil {
		return s.engine.Search(query, opts), nil
	}
	return s.cache.Get(cache.Key(query, opts), func() ([]search.Match, error) {
		return s.engine.Search(query, opts), nil
	})
}

type cardListResponse struct {
	Count int           `json:"count"`
	Cards []domain.Card `json:"cards"`
}

// CardsByColor handles GET /api/cards/by-color?colors=W,U.
func (s *Server) CardsByColor(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("colors")
	if raw == "" {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "colors parameter is required")
		return
	}
	colors := splitColors(raw)
	writeCardList(w, s.corpus.ByColorIdentity(colors))
}

// CardsByType handles GET /api/cards/by-type?type=creature.
func (s *Server) CardsByType(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	if typ == "" {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "type parameter is required")
		return
	}
	writeCardList(w, s.corpus.ByType(typ))
}

// CardsByCMC handles GET /api/cards/by-cmc?cmc=3.
func (s *Server) CardsByCMC(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("cmc")
	cmc, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "cmc must be a number")
		return
	}
	writeCardList(w, s.corpus.ByCMC(cmc))
}

// RandomCards handles GET /api/cards/random?count=5.
func (s *Server) RandomCards(w http.ResponseWriter, r *http.Request) {
	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, "count must be a positive integer")
			return
		}
		count = n
	}
	writeCardList(w, s.corpus.Random(count))
}

// CardDetails handles GET /api/cards/details/{id}.
func (s *Server) CardDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	card, ok := s.corpus.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, codeCardNotFound, "card not found")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// SimilarCards handles GET /api/cards/{id}/similar?component=abilities&limit=10.
func (s *Server) SimilarCards(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	component := r.URL.Query().Get("component")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, "limit must be a positive integer")
			return
		}
		limit = n
	}

	matches, err := s.engine.FindSimilar(id, component, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: id, Count: len(matches), Results: matches})
}

type analyzeRequest struct {
	Strategy string         `json:"strategy"`
	Query    string         `json:"query"`
	Options  search.Options `json:"options"`
}

type analyzeResponse struct {
	Strategy   string          `json:"strategy"`
	Candidates []search.Match  `json:"candidates"`
	Analysis   analysis.Result `json:"analysis"`
}

// AnalyzeCommanders handles POST /api/commanders/analyze: a commander
// search for candidates, then a model pass to pick the best fits.
func (s *Server) AnalyzeCommanders(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Strategy) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "Strategy is required")
		return
	}
	if s.analyzer == nil || !s.analyzer.Enabled() {
		writeError(w, http.StatusServiceUnavailable, codeAnalysisUnavailable,
			domain.ErrAnalysisUnavailable.Error())
		return
	}

	query := req.Query
	if query == "" {
		query = req.Strategy
	}
	opts := req.Options
	opts.CommanderSearch = true
	if opts.Limit <= 0 || opts.Limit > analyzeCandidateLimit {
		opts.Limit = analyzeCandidateLimit
	}

	candidates, err := s.cachedSearch(query, opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	cards := make([]domain.Card, len(candidates))
	for i := range candidates {
		cards[i] = candidates[i].Card
	}

	result, err := s.analyzer.AnalyzeCommanders(r.Context(), req.Strategy, cards)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Strategy:   req.Strategy,
		Candidates: candidates,
		Analysis:   result,
	})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	if s.corpus == nil || s.corpus.Len() == 0 {
		status = "empty_corpus"
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"cards":  s.corpus.Len(),
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// splitColors accepts "W,U" as well as "WU".
func splitColors(raw string) []string {
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, strings.ToUpper(p))
			}
		}
		return out
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, strings.ToUpper(string(r)))
	}
	return out
}

func writeCardList(w http.ResponseWriter, cards []domain.Card) {
	if cards == nil {
		cards = []domain.Card{}
	}
	writeJSON(w, http.StatusOK, cardListResponse{Count: len(cards), Cards: cards})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrCardNotFound,
		domain.ErrInvalidQuery,
		domain.ErrCorpusNotFound,
		domain.ErrAnalysisUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
