// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package maskslog redacts the values of selected log attributes.
package maskslog

import (
	"context"
	"log/slog"
)

// Masked replaces every redacted value.
const Masked = "****"

// Handler redacts top level attributes whose key was registered.
type Handler struct {
	next slog.Handler
	keys map[string]struct{}
}

// NewHandler wraps next. With no keys it masks nothing.
func NewHandler(next slog.Handler, keys ...string) *Handler {
	m := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		m[key] = struct{}{}
	}
	return &Handler{next: next, keys: m}
}

// Enabled implements the [slog.Handler] interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

// Handle implements the [slog.Handler] interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if len(h.keys) == 0 || record.NumAttrs() == 0 {
		return h.next.Handle(ctx, record)
	}

	r := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(h.mask(a))
		return true
	})
	return h.next.Handle(ctx, r)
}

// WithAttrs implements the [slog.Handler] interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &Handler{next: h.next.WithAttrs(masked), keys: h.keys}
}

// WithGroup implements the [slog.Handler] interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), keys: h.keys}
}

func (h *Handler) mask(a slog.Attr) slog.Attr {
	if _, ok := h.keys[a.Key]; !ok {
		return a
	}
	return slog.String(a.Key, Masked)
}
