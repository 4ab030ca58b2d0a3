package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/auth"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/report"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// Deps is everything the API needs. Parser, Auth and Limiter are optional:
// a nil Parser answers draft requests with 503, a nil Auth leaves /api open
// and a nil Limiter disables rate limiting.
type Deps struct {
	Repo         storage.Repository
	Transactions *services.TransactionService
	Recurring    *services.RecurringProcessor
	SyncState    *services.SyncState
	Reports      *report.Service
	Parser       ai.Parser
	Auth         *auth.Verifier
	Limiter      *ratelimit.Limiter
	Detector     *security.Detector
	Logger       *log.Logger
	Now          func() time.Time
}

// Server is the JSON API.
type Server struct {
	http.Server
	deps Deps

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Detector == nil {
		deps.Detector = security.NewDetector()
	}
	if deps.SyncState == nil {
		deps.SyncState = services.NewSyncState()
	}

	s := &Server{deps: deps}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	d := s.deps
	r := chi.NewRouter()

	r.Use(trace.NewMiddleware(d.Logger.WithComponent(log.ComponentHTTP), d.Detector.ExtractClientIP).Handler)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(d.Detector.Middleware)
	if d.Limiter != nil {
		r.Use(d.Limiter.Middleware(d.Detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		if d.Auth != nil {
			r.Use(d.Auth.Middleware(writeError))
		}

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Get("/{id}", s.handleGetTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Route("/recurring", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Post("/run", s.handleRunRecurring)
			r.Get("/{id}", s.handleGetRule)
			r.Put("/{id}", s.handleUpdateRule)
			r.Delete("/{id}", s.handleDeleteRule)
		})

		r.Get("/sync", s.handleSyncState)
		r.Post("/sync", s.handleSyncReload)

		mountCRUD(r, "/budgets", d.Repo.Budgets(), storage.BudgetKind)
		mountCRUD(r, "/lenders", d.Repo.Lenders(), storage.LenderKind)
		mountCRUD(r, "/loans", d.Repo.Loans(), storage.LoanKind)
		mountCRUD(r, "/assets", d.Repo.Assets(), storage.AssetKind)
		mountCRUD(r, "/asset-transactions", d.Repo.AssetTransactions(), storage.AssetTransactionKind)
		mountCRUD(r, "/item-rates", d.Repo.ItemRates(), storage.ItemRateKind)
		mountCRUD(r, "/profiles", d.Repo.Profiles(), storage.ProfileKind)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/month", s.handleMonthReport)
			r.Get("/budgets", s.handleBudgetReport)
			r.Get("/lenders", s.handleLenderReport)
			r.Get("/assets", s.handleAssetReport)
		})

		r.Get("/export.csv", s.handleExportCSV)
		r.Get("/export.xlsx", s.handleExportXLSX)

		r.Route("/drafts", func(r chi.Router) {
			r.Post("/text", s.handleDraftText)
			r.Post("/image", s.handleDraftImage)
			r.Post("/commit", s.handleDraftCommit)
		})
	})
	return r
}

func (s *Server) today() core.Date {
	return core.DateOf(s.deps.Now())
}

// runRecurring materializes due rules. Failures are recorded in the sync
// state and logged; the triggering request still succeeds.
func (s *Server) runRecurring(ctx context.Context) {
	if s.deps.Recurring == nil {
		return
	}
	if _, err := s.deps.Recurring.Run(ctx, s.deps.Now()); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Recurring materialization failed", log.FieldError, err)
	}
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// ListenAndServe treats a graceful shutdown as a clean exit.
func (s *Server) ListenAndServe() error {
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
