package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/services/webinar-service/internal/pkg/context"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/pkg/logger"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/service"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/transport/rest/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// HealthCheck is a named dependency check reported by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handler struct {
	svc      *service.BookingService
	validate *validator.Validate
	checks   []HealthCheck
}

func NewHandler(svc *service.BookingService, checks ...HealthCheck) *Handler {
	v := validator.New()
	// report json field names in validation errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		svc:      svc,
		validate: v,
		checks:   checks,
	}
}

type bookRequest struct {
	WebinarID string `json:"webinar_id" validate:"required,max=128"`
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}

	var req bookRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	req.WebinarID = strings.TrimSpace(req.WebinarID)

	if err := h.validate.Struct(req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid webinar_id", validationMeta(err))
		return
	}

	if err := h.svc.BookSeat(r.Context(), req.WebinarID, domain.User{ID: auth.UserID}); err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, r, http.StatusCreated, map[string]string{
		"webinar_id": req.WebinarID,
		"user_id":    auth.UserID,
		"status":     "registered",
	})
}

func (h *Handler) GetWebinar(w http.ResponseWriter, r *http.Request) {
	webinarID, ok := webinarParam(w, r)
	if !ok {
		return
	}

	d, err := h.svc.GetDetails(r.Context(), webinarID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, r, http.StatusOK, map[string]any{
		"id":            d.ID,
		"title":         d.Title,
		"organizer_id":  d.OrganizerID,
		"seat_capacity": d.SeatCapacity,
		"seats_taken":   d.SeatsTaken(),
		"seats_left":    d.SeatsLeft(),
	})
}

func (h *Handler) Participants(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}
	webinarID, ok := webinarParam(w, r)
	if !ok {
		return
	}

	ps, err := h.svc.ListParticipants(r.Context(), webinarID, auth.UserID, auth.Role)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.UserID)
	}
	response.Data(w, r, http.StatusOK, map[string]any{
		"webinar_id":   webinarID,
		"participants": ids,
		"count":        len(ids),
	})
}

func (h *Handler) MyParticipation(w http.ResponseWriter, r *http.Request) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
		return
	}
	webinarID, ok := webinarParam(w, r)
	if !ok {
		return
	}

	registered, err := h.svc.IsRegistered(r.Context(), webinarID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, r, http.StatusOK, map[string]any{
		"webinar_id": webinarID,
		"registered": registered,
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			status[c.Name] = "down"
			healthy = false
			logger.WithCtx(r.Context()).Warn().Err(err).Str("check", c.Name).Msg("health check failed")
			continue
		}
		status[c.Name] = "up"
	}

	code := http.StatusOK
	state := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		state = "degraded"
	}
	response.Data(w, r, code, map[string]any{"status": state, "checks": status})
}

func webinarParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "webinarID"))
	if id == "" || len(id) > 128 {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid webinarID", map[string]string{
			"webinar_id": "must be 1-128 characters",
		})
		return "", false
	}
	return id, true
}

func validationMeta(err error) map[string]string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}
	meta := make(map[string]string, len(ves))
	for _, fe := range ves {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			meta[field] = "is required"
		case "max":
			meta[field] = fmt.Sprintf("must be at most %s characters", fe.Param())
		default:
			meta[field] = "is invalid"
		}
	}
	return meta
}

func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	var se *domain.StorageError
	switch {
	case errors.Is(err, domain.ErrWebinarNotFound):
		fail(w, r, http.StatusNotFound, "webinar.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrNoSeatsAvailable):
		fail(w, r, http.StatusConflict, "webinar.full", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyParticipating):
		fail(w, r, http.StatusConflict, "participation.duplicate", err.Error(), nil)
	case errors.Is(err, domain.ErrForbidden):
		fail(w, r, http.StatusForbidden, "auth.forbidden", "forbidden", nil)
	case errors.As(err, &se):
		logger.WithCtx(r.Context()).Error().Err(err).Str("op", se.Op).Msg("storage unavailable")
		w.Header().Set("Retry-After", "1")
		fail(w, r, http.StatusServiceUnavailable, "storage.unavailable", "temporarily unavailable, retry later", nil)
	default:
		logger.WithCtx(r.Context()).Error().Err(err).Msg("unhandled error")
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	reqID := appCtx.GetRequestID(r.Context())
	if reqID == "" {
		reqID = "no-request-id"
	}
	response.Fail(w, r, status, response.Problem{
		Code:      code,
		Message:   message,
		Meta:      meta,
		RequestID: reqID,
	})
}
