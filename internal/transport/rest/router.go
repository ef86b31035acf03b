package rest

import (
	"net/http"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

type RouterDeps struct {
	Handler  *Handler
	Verifier security.AccessTokenVerifier

	// Limiter shares rate-limit windows across replicas. When nil, an
	// in-process httprate limiter is used instead.
	Limiter   domain.RateLimiter
	RLEnabled bool
	RLLimit   int
	RLWindow  time.Duration

	JWTIssuer string
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Verifier == nil {
		panic("rest.NewRouter: nil verifier")
	}

	r := chi.NewRouter()

	// Request ID + structured access log
	r.Use(RequestID)
	r.Use(HTTPLogger)

	r.Use(middleware.Recoverer)

	if d.RLEnabled && d.RLLimit > 0 {
		if d.Limiter != nil {
			r.Use(RateLimitMiddleware(d.Limiter, d.RLLimit, d.RLWindow))
		} else {
			r.Use(httprate.LimitByIP(d.RLLimit, d.RLWindow))
		}
	}
	r.Use(SecurityHeaders)

	r.Get("/healthz", d.Handler.Healthz)
	r.Handle("/metrics", metrics.MetricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(d.Verifier, AuthOptions{ExpectedIssuer: d.JWTIssuer}))

		r.Post("/bookings", d.Handler.Book)

		r.Get("/webinars/{webinarID}", d.Handler.GetWebinar)
		r.Get("/webinars/{webinarID}/participants", d.Handler.Participants)
		r.Get("/webinars/{webinarID}/participation", d.Handler.MyParticipation)
	})

	return r
}
