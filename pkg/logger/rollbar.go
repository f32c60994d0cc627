package logger

import (
	"context"
	"log/slog"

	"github.com/rollbar/rollbar-go"
)

// Reporter receives error and fatal records with their fields.
type Reporter interface {
	Error(msg string, extras map[string]interface{})
	Critical(msg string, extras map[string]interface{})
}

// RollbarReporter forwards records to Rollbar as messages.
type RollbarReporter struct {
	client *rollbar.Client
}

var _ Reporter = (*RollbarReporter)(nil)

// NewRollbarReporter builds an async Rollbar reporter for the given token.
func NewRollbarReporter(token, environment, codeVersion string) *RollbarReporter {
	return &RollbarReporter{client: rollbar.New(token, environment, codeVersion, "", "")}
}

func (r *RollbarReporter) Error(msg string, extras map[string]interface{}) {
	r.client.MessageWithExtras(rollbar.ERR, msg, extras)
}

func (r *RollbarReporter) Critical(msg string, extras map[string]interface{}) {
	r.client.MessageWithExtras(rollbar.CRIT, msg, extras)
}

// Close flushes queued items.
func (r *RollbarReporter) Close() error {
	return r.client.Close()
}

// WithReporter forwards error and fatal records to r, keeping the base handler output.
func WithReporter(r Reporter) Option {
	if r == nil {
		return func(*options) {}
	}
	return WithHandlerWrapper(func(next slog.Handler) slog.Handler {
		return &reportingHandler{next: next, reporter: r}
	})
}

type reportingHandler struct {
	next     slog.Handler
	reporter Reporter
	attrs    []slog.Attr
}

func (h *reportingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *reportingHandler) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= slog.LevelError {
		extras := make(map[string]interface{}, rec.NumAttrs()+len(h.attrs))
		for _, a := range h.attrs {
			extras[a.Key] = a.Value.Any()
		}
		rec.Attrs(func(a slog.Attr) bool {
			extras[a.Key] = a.Value.Any()
			return true
		})
		if rec.Level >= LevelFatal {
			h.reporter.Critical(rec.Message, extras)
		} else {
			h.reporter.Error(rec.Message, extras)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *reportingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &reportingHandler{next: h.next.WithAttrs(attrs), reporter: h.reporter, attrs: merged}
}

func (h *reportingHandler) WithGroup(name string) slog.Handler {
	return &reportingHandler{next: h.next.WithGroup(name), reporter: h.reporter, attrs: h.attrs}
}
