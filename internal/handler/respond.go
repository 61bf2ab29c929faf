package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/domain/auth"
	"github.com/artelab/backoffice/internal/domain/order"
	"github.com/artelab/backoffice/internal/domain/pricing"
	"github.com/artelab/backoffice/internal/domain/product"
	"github.com/artelab/backoffice/internal/domain/profile"
	"github.com/artelab/backoffice/internal/domain/promotion"
	"github.com/artelab/backoffice/internal/media"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Total   *int   `json:"total,omitempty"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(ctx).Debug("Write response", zap.Error(err))
	}
}

func ok(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	writeJSON(ctx, w, status, envelope{Success: true, Message: message, Data: data})
}

func okList[T any](ctx context.Context, w http.ResponseWriter, items []T) {
	n := len(items)
	if items == nil {
		items = []T{}
	}
	writeJSON(ctx, w, http.StatusOK, envelope{Success: true, Data: items, Total: &n})
}

// badRequest is a client input error whose message is safe to return.
type badRequest struct {
	msg string
	err error
}

func (e *badRequest) Error() string { return e.msg }
func (e *badRequest) Unwrap() error { return e.err }

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &badRequest{msg: "invalid request body", err: err}
	}
	if err := h.validate.Struct(dst); err != nil {
		return &badRequest{msg: validationMessage(err), err: err}
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	f := verrs[0]
	switch f.Tag() {
	case "required":
		return f.Field() + " is required"
	case "email":
		return f.Field() + " must be a valid email"
	case "gt", "gte", "min":
		return f.Field() + " must be at least " + f.Param()
	case "oneof":
		return f.Field() + " must be one of: " + f.Param()
	default:
		return f.Field() + " is invalid"
	}
}

// statusOf maps domain errors to HTTP statuses. Anything unknown is a 500.
func statusOf(err error) int {
	var (
		br       *badRequest
		notFound *pricing.ProductNotFoundError
		qty      *order.InvalidQuantityError
		trans    *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &br), errors.As(err, &qty), errors.As(err, &trans),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrNegativeTotal),
		errors.Is(err, product.ErrInvalidPrice),
		errors.Is(err, product.ErrPriceScale),
		errors.Is(err, product.ErrInvalidStock),
		errors.Is(err, promotion.ErrInvalidDiscount),
		errors.Is(err, promotion.ErrInvalidWindow),
		errors.Is(err, media.ErrNotImage),
		errors.Is(err, media.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, order.ErrForbiddenCustomer):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, promotion.ErrNotFound),
		errors.Is(err, profile.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed", zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(ctx, w, status, envelope{Success: false, Message: msg})
}
