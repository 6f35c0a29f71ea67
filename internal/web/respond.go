// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/holomush/sessionauth/internal/auth"
	"github.com/holomush/sessionauth/pkg/errutil"
)

// statusClientClosedRequest is reported when the caller went away before
// the service finished.
const statusClientClosedRequest = 499

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageBody{Message: message})
}

// statusFor maps a service error to an HTTP status. rejected is the status
// for expected authentication failures on the calling route.
func statusFor(err error, rejected int) int {
	switch {
	case errors.Is(err, auth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrEmptyPassword):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidSession),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrNotFound):
		return rejected
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the error response for err. Internal details are logged,
// never returned to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, rejected int) {
	status := statusFor(err, rejected)
	message := http.StatusText(status)
	if status == statusClientClosedRequest {
		message = "client closed request"
	}
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		message = auth.ErrDuplicateEmail.Error()
	case errors.Is(err, auth.ErrInvalidEmail):
		message = auth.ErrInvalidEmail.Error()
	case errors.Is(err, auth.ErrEmptyPassword):
		message = auth.ErrEmptyPassword.Error()
	case status >= http.StatusInternalServerError:
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	}
	writeMessage(w, status, message)
}
