package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledgerdesk/internal/forms"
	"github.com/odyssey-erp/ledgerdesk/internal/mapping"
	"github.com/odyssey-erp/ledgerdesk/internal/masterdata"
	"github.com/odyssey-erp/ledgerdesk/internal/observability"
	"github.com/odyssey-erp/ledgerdesk/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerdesk/internal/policy"
	"github.com/odyssey-erp/ledgerdesk/internal/shared"
	"github.com/odyssey-erp/ledgerdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Resolver          CapabilityResolver
	MasterDataHandler *masterdata.Handler
	MappingHandler    *mapping.Handler
	FormsHandler      *forms.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

type capabilityForgetter interface {
	Forget(ctx context.Context, token string) error
}

type sessionView struct {
	FinancialYearID int64               `json:"finyearid"`
	Capabilities    policy.Capabilities `json:"capabilities"`
}

// NewRouter constructs the chi.Router serving the entry screens.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(RequestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(SessionMiddleware(params.Resolver, logger))

		r.Get("/session", func(w http.ResponseWriter, r *http.Request) {
			sess, err := shared.RequireSession(r.Context())
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, sessionView{FinancialYearID: sess.FinancialYearID, Capabilities: sess.Capabilities})
		})
		r.Delete("/session/capabilities", func(w http.ResponseWriter, r *http.Request) {
			sess, err := shared.RequireSession(r.Context())
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			if f, ok := params.Resolver.(capabilityForgetter); ok {
				if err := f.Forget(r.Context(), sess.Token); err != nil {
					logger.Warn("forget capabilities", slog.Any("error", err))
					httpx.RespondError(w, err)
					return
				}
			}
			w.WriteHeader(http.StatusNoContent)
		})

		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(r)
		}
		if params.MappingHandler != nil {
			params.MappingHandler.MountRoutes(r)
		}
		if params.FormsHandler != nil {
			params.FormsHandler.MountRoutes(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, httpx.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "")
	})

	return r
}
