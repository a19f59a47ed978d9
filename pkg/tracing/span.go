// Package tracing times a request as a tree of spans carried in its
// context. The resolver opens the root per cart-options call and one child
// per catalog lookup; at the end the tree is dumped at debug level.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type ctxKey struct{}

type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration
	Children []*Span

	mu    sync.Mutex
	ended bool
	attrs []any
}

func newSpan(name, traceID string) *Span {
	return &Span{Name: name, TraceID: traceID, Start: time.Now()}
}

// StartSpan opens a root span for traceID.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := newSpan(name, traceID)
	return context.WithValue(ctx, ctxKey{}, s), s
}

// StartChildSpan opens a span under the one in ctx. With no parent the span
// is detached and nothing ever logs it.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name, "")
	}
	s := newSpan(name, parent.TraceID)
	parent.mu.Lock()
	parent.Children = append(parent.Children, s)
	parent.mu.Unlock()
	return context.WithValue(ctx, ctxKey{}, s), s
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(ctxKey{}).(*Span)
	return s
}

// End fixes the duration. Later calls are no-ops.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.ended = true
		s.Duration = time.Since(s.Start)
	}
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Log emits one debug record per span, depth first.
func (s *Span) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		s.walk(0, func(sp *Span, depth int, d time.Duration, attrs []any) {
			args := append([]any{"trace_id", sp.TraceID, "span", sp.Name, "depth", depth, "duration_ms", d.Milliseconds()}, attrs...)
			logger.Debug("span", args...)
		})
	}
}

func (s *Span) walk(depth int, visit func(*Span, int, time.Duration, []any)) {
	s.mu.Lock()
	d := s.Duration
	attrs := append([]any(nil), s.attrs...)
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()
	visit(s, depth, d, attrs)
	for _, c := range children {
		c.walk(depth+1, visit)
	}
}
