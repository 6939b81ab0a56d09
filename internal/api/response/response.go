// Package response writes JSON bodies and RFC 7807 problems with the
// request id echoed in X-Request-Id.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tripwise/tripwise/internal/api/middleware"
	"github.com/tripwise/tripwise/internal/api/models"
	"github.com/tripwise/tripwise/pkg/routeplan"
)

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
}

// JSON writes data as the body. A nil data writes headers only.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes a 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Problem writes the RFC 7807 problem for status with the request path as instance.
func Problem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	write(w, r, models.NewProblem(status, middleware.GetRequestID(r.Context()), detail))
}

func write(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}

// BadRequest writes a 400 with optional field errors.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, fields []models.FieldError) {
	write(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, fields))
}

// Malformed writes the 500 for a request body that cannot be planned. The
// detail is repeated as the "error" member.
func Malformed(w http.ResponseWriter, r *http.Request, detail string, fields []models.FieldError) {
	write(w, r, models.NewMalformedRequest(middleware.GetRequestID(r.Context()), detail, fields))
}

// Invalid writes Malformed for err, expanding a *routeplan.ValidationError
// into field errors.
func Invalid(w http.ResponseWriter, r *http.Request, err error) {
	var verr *routeplan.ValidationError
	if errors.As(err, &verr) {
		Malformed(w, r, "request validation failed", models.FieldErrors(verr))
		return
	}
	Malformed(w, r, err.Error(), nil)
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusNotFound, detail)
}

// InternalError writes a 500 whose detail is repeated as the "error" member.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusInternalServerError, detail)
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Problem(w, r, http.StatusServiceUnavailable, detail)
}
