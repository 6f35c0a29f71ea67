// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessionauth/pkg/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("TEST_ERROR").
		With("key", "value").
		Errorf("something failed")

	errutil.LogError(logger, "operation failed", err)

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Equal(t, "operation failed", logEntry["msg"])
	assert.Equal(t, "TEST_ERROR", logEntry["code"])
	ctx, ok := logEntry["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "value", ctx["key"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := errors.New("standard error")

	errutil.LogError(logger, "operation failed", err)

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "ERROR", logEntry["level"])
	assert.Contains(t, logEntry["error"], "standard error")
	assert.NotContains(t, logEntry, "code")
}

func TestLogErrorContext_UsesContext(t *testing.T) {
	type key struct{}
	var seen any
	h := ctxHandler{Handler: slog.NewJSONHandler(&bytes.Buffer{}, nil), fn: func(ctx context.Context) {
		seen = ctx.Value(key{})
	}}
	logger := slog.New(h)

	ctx := context.WithValue(context.Background(), key{}, "marker")
	errutil.LogErrorContext(ctx, logger, "failed", errors.New("boom"))

	assert.Equal(t, "marker", seen)
}

type ctxHandler struct {
	slog.Handler
	fn func(context.Context)
}

func (h ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	h.fn(ctx)
	return h.Handler.Handle(ctx, r) //nolint:wrapcheck // test passthrough
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"standard error", errors.New("x"), ""},
		{"oops without code", oops.Errorf("x"), ""},
		{"oops with code", oops.Code("SOME_CODE").Errorf("x"), "SOME_CODE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errutil.Code(tt.err))
		})
	}
}
