/*
Package resp writes the admin API's JSON envelope.

Every response carries a business code (0 on success, an errs code otherwise), a message and
optional data. Errors coming back from the orchestrator's event loop are mapped onto that
envelope by RespondFailure.
*/
package resp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"cloak/internal/pkg/errs"
	"cloak/internal/pkg/logx"
)

// Envelope is the body of every admin API response.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func write(w http.ResponseWriter, r *http.Request, status int, body Envelope) {
	payload, err := json.Marshal(body)
	if err != nil {
		logx.Error(err, "Error encoding JSON response",
			"http_status", status,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	w.Write(payload)
}

// RespondSuccess answers 200 with data.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	write(w, r, http.StatusOK, Envelope{Message: "success", Data: data})
}

// RespondCreated answers 201 with the created resource.
func RespondCreated(w http.ResponseWriter, r *http.Request, data any) {
	write(w, r, http.StatusCreated, Envelope{Message: "created", Data: data})
}

// RespondError answers with the code, message and HTTP status of customErr.
// A nil error is reported as ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	status := customErr.Status
	if status < http.StatusBadRequest {
		status = http.StatusConflict
	}
	write(w, r, status, Envelope{Code: customErr.Code, Message: customErr.Message})
}

// RespondFailure maps an arbitrary error onto the envelope. Coded errors keep their
// code, so ErrShuttingDown answers 503 and ErrLobbyNotDeletable answers 409. A
// cancelled request and anything uncoded answer ErrUnknown.
func RespondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var customErr *errs.CustomError
	switch {
	case errors.As(err, &customErr):
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logx.Warn("Request abandoned before it was served.",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
		customErr = errs.NewError(errs.ErrUnknown)
	default:
		logx.Error(err, "Request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
		customErr = errs.NewError(errs.ErrUnknown)
	}
	RespondError(w, r, customErr)
}
