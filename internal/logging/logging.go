// Package logging builds the slog loggers used for diagnostics. Library code
// takes a *slog.Logger through options and falls back to L, which discards
// everything until Init is called.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	kitlog "github.com/go-kit/log"
)

// L is the process logger. It's initialized to discard all output by default.
var L = Discard()

// Output formats accepted by New.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatLogfmt = "logfmt"
)

// Options configures a logger.
type Options struct {
	Format string     // text, json or logfmt. Default: text
	Level  slog.Level // Minimum level. Default: LevelInfo
	Output io.Writer  // Destination. Default: os.Stderr
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// New builds a logger for opts.
func New(opts Options) (*slog.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}

	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(out, hopts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(out, hopts)), nil
	case FormatLogfmt:
		kl := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(out))
		kl = kitlog.With(kl, "ts", kitlog.DefaultTimestampUTC)
		return slog.New(NewKitHandler(kl, opts.Level)), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}
}

// Init replaces L with a logger built from opts.
func Init(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	L = l
	return nil
}

// ParseLevel accepts debug, info, warn and error (any case). Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return lvl, nil
}

// Or returns l, or L when l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l == nil {
		return L
	}
	return l
}
