package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	appmw "github.com/briangreenhill/dexprice/internal/http/middleware"
	"github.com/briangreenhill/dexprice/price"
)

// Resolver is what the price endpoint needs from the price package.
type Resolver interface {
	Resolve(ctx context.Context, chain, token string) (price.Quote, error)
}

type Server struct {
	Router *chi.Mux
	Prices Resolver
}

type ServerOptions struct {
	Prices Resolver
	Logger zerolog.Logger
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(appmw.RequestLogging(opts.Logger))
	r.Use(chimw.Recoverer)

	s := &Server{Router: r, Prices: opts.Prices}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})

	r.Get("/price/{chain}/{token}", s.handlePrice)

	return s
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	chain := chi.URLParam(r, "chain")
	token := chi.URLParam(r, "token")

	q, err := s.Prices.Resolve(r.Context(), chain, token)
	if err != nil {
		details := err.Error()
		var re *price.ResolveError
		if errors.As(err, &re) {
			details = re.Details()
		}
		hlog.FromRequest(r).Warn().Str("chain", chain).Str("token", token).Str("details", details).Msg("price resolution failed")
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to fetch price",
			Details: details,
		})
		return
	}

	writeJSON(w, r, http.StatusOK, q)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}
