// Package handlers provides the HTTP transport for the payments API.
//
//   - POST /v1/payments              – create; deduplicated by the Idempotency-Key header.
//   - POST /v1/payments/{id}/cancel  – cancel; canceling twice returns the same payment.
//   - GET  /v1/payments/{id}         – read.
//   - GET  /v1/payments/{id}/events  – event history of a payment.
//
// A replayed create answers 200 with Idempotent-Replayed: true instead of
// 201. A create whose key is still owned by another in-flight request answers
// 202 with Retry-After; the client retries with the same key.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arkantrust/idempotent-payments/models"
)

const (
	// IdempotencyKeyHeader carries the client idempotency key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader is set on responses served from an earlier request.
	ReplayedHeader = "Idempotent-Replayed"

	retryAfterSeconds = "1"
)

// PaymentService is the payments facade consumed by the handlers.
type PaymentService interface {
	CreatePayment(ctx context.Context, req models.CreatePaymentRequest, idempotencyKey string) (*models.Payment, bool, error)
	CancelPayment(ctx context.Context, id, idempotencyKey, reason string) (*models.Payment, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	PaymentEvents(ctx context.Context, id string) ([]models.PaymentEvent, error)
}

// Handler holds the dependencies for all payment HTTP handlers.
type Handler struct {
	service PaymentService
	logger  *slog.Logger
}

// New creates a new Handler with the given service.
func New(service PaymentService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the models error taxonomy to a status code.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrStillInProgress):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusAccepted, err.Error())
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInternalConsistency):
		h.logger.ErrorContext(r.Context(), "internal consistency violation",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal consistency error")
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readBody reads the request body, answering 413 past maxBodyBytes. ok is
// false once a response has been written.
func readBody(w http.ResponseWriter, r *http.Request) (body []byte, ok bool) {
	body, err := io.ReadAll(r.Body)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return nil, false
	case err != nil:
		writeError(w, http.StatusBadRequest, "failed to read body")
		return nil, false
	}
	return body, true
}

// create handles POST /v1/payments.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := validateBody(createPaymentSchema, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.CreatePaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, created, err := h.service.CreatePayment(r.Context(), req, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if created {
		writeJSON(w, http.StatusCreated, p)
		return
	}
	w.Header().Set(ReplayedHeader, "true")
	writeJSON(w, http.StatusOK, p)
}

// cancel handles POST /v1/payments/{id}/cancel. The body is optional.
func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if len(body) > 0 {
		if err := validateBody(cancelPaymentSchema, body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	p, err := h.service.CancelPayment(r.Context(), id, r.Header.Get(IdempotencyKeyHeader), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// get handles GET /v1/payments/{id}.
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// events handles GET /v1/payments/{id}/events.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	evs, err := h.service.PaymentEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if evs == nil {
		evs = []models.PaymentEvent{}
	}
	writeJSON(w, http.StatusOK, evs)
}
