package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wiedu/wiedu-backend/api/controllers"
	"github.com/wiedu/wiedu-backend/api/middleware"
	"github.com/wiedu/wiedu-backend/internal/lifecycle"
	"github.com/wiedu/wiedu-backend/internal/memberships"
	"github.com/wiedu/wiedu-backend/internal/requests"
	"github.com/wiedu/wiedu-backend/internal/studies"
	"github.com/wiedu/wiedu-backend/pkg/auth/session"
	"github.com/wiedu/wiedu-backend/pkg/config"
	"github.com/wiedu/wiedu-backend/pkg/db"
	"github.com/wiedu/wiedu-backend/pkg/logger"
)

// KVStore is the redis surface the HTTP layer needs: idempotency records,
// rate-limit counters and a readiness ping.
type KVStore interface {
	IdempotencyKey(scope, id string) string
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Sessions is the access-token denylist: Auth reads it and sign-out writes it.
type Sessions interface {
	session.AccessSessionChecker
	session.AccessSessionRevoker
}

// Services groups the domain services mounted under /api/v1.
type Services struct {
	Studies     studies.Service
	Requests    requests.Service
	Memberships memberships.Service
	Lifecycle   lifecycle.Coordinator
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	store KVStore,
	sessions Sessions,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	applyPolicy := middleware.NewRateLimitPolicy(
		"apply",
		cfg.RateLimit.ApplyWindow,
		cfg.RateLimit.ApplyUserLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": store,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(store, logg))

		r.Delete("/session", controllers.SessionRevoke(sessions, logg))

		r.Route("/studies", func(r chi.Router) {
			r.Post("/", controllers.StudyCreate(svc.Studies, logg))
			r.Get("/", controllers.StudyList(svc.Studies, logg))
			r.Get("/me", controllers.StudyListMine(svc.Studies, logg))

			r.Route("/{studyId}", func(r chi.Router) {
				r.Get("/", controllers.StudyGet(svc.Studies, logg))
				r.Patch("/", controllers.StudyUpdate(svc.Studies, logg))
				r.Post("/close", controllers.StudyClose(svc.Studies, logg))
				r.Post("/complete", controllers.StudyComplete(svc.Studies, logg))

				r.With(middleware.UserRateLimit(applyPolicy, store, logg)).Post("/requests", controllers.StudyApply(svc.Requests, logg))
				r.Get("/requests", controllers.StudyPendingRequests(svc.Requests, logg))

				r.Route("/members", func(r chi.Router) {
					r.Get("/", controllers.StudyMembers(svc.Memberships, logg))
					r.Get("/check", controllers.StudyMembershipCheck(svc.Memberships, logg))
					r.Delete("/me", controllers.StudyWithdraw(svc.Lifecycle, logg))
					r.Delete("/{userId}", controllers.StudyKick(svc.Lifecycle, logg))
					r.Post("/{userId}/promote", controllers.StudyPromote(svc.Lifecycle, logg))
				})
			})
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/me", controllers.RequestListMine(svc.Requests, logg))
			r.Post("/{requestId}/approve", controllers.RequestApprove(svc.Lifecycle, logg))
			r.Post("/{requestId}/reject", controllers.RequestReject(svc.Requests, logg))
			r.Delete("/{requestId}", controllers.RequestCancel(svc.Requests, logg))
		})
	})

	return r
}
