package logging

import (
	"context"
	"log/slog"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// kitHandler forwards slog records to a go-kit logger, so the logfmt output
// matches the rest of a go-kit based deployment.
type kitHandler struct {
	logger kitlog.Logger
	level  slog.Leveler
	attrs  []any
	prefix string
}

// NewKitHandler returns a slog.Handler writing through l. Records below lvl
// are dropped.
func NewKitHandler(l kitlog.Logger, lvl slog.Leveler) slog.Handler {
	if lvl == nil {
		lvl = slog.LevelInfo
	}
	return &kitHandler{logger: l, level: lvl}
}

func (h *kitHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *kitHandler) Handle(_ context.Context, r slog.Record) error {
	kv := make([]any, 0, 2+len(h.attrs)+2*r.NumAttrs())
	kv = append(kv, "msg", r.Message)
	kv = append(kv, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		kv = appendAttr(kv, h.prefix, a)
		return true
	})
	return withLevel(h.logger, r.Level).Log(kv...)
}

func (h *kitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]any(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = appendAttr(next.attrs, h.prefix, a)
	}
	return &next
}

func (h *kitHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func appendAttr(kv []any, prefix string, a slog.Attr) []any {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return kv
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			kv = appendAttr(kv, p, ga)
		}
		return kv
	}
	return append(kv, prefix+a.Key, a.Value.Any())
}

func withLevel(l kitlog.Logger, lvl slog.Level) kitlog.Logger {
	switch {
	case lvl >= slog.LevelError:
		return level.Error(l)
	case lvl >= slog.LevelWarn:
		return level.Warn(l)
	case lvl >= slog.LevelInfo:
		return level.Info(l)
	default:
		return level.Debug(l)
	}
}
