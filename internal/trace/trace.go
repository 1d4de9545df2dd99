// Package trace reads allocation event traces and replays them into a
// watch registry.
//
// A trace holds one event per line. Blank lines and lines starting with '#'
// are ignored:
//
//	alloc   0x1000 64 a.c:10
//	realloc 0x3000 4KiB b.c:7
//	free    0x1000 a.c:12
//
// A line starting with '{' is read as a JSON object instead:
//
//	{"op":"alloc","ptr":"0x1000","size":64,"site":"a.c:10"}
//
// Input may carry a UTF-8 or UTF-16 byte order mark.
package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/joshuapare/memwatch/watch"
)

const commentPrefix = "#"

// maxLine bounds a single trace line.
const maxLine = 1 << 20

// Op is the kind of a trace event.
type Op uint8

const (
	OpAlloc Op = iota + 1
	OpRealloc
	OpFree
)

func (o Op) String() string {
	switch o {
	case OpAlloc:
		return "alloc"
	case OpRealloc:
		return "realloc"
	case OpFree:
		return "free"
	default:
		return "unknown"
	}
}

// ParseOp accepts alloc (or malloc, calloc), realloc and free in any case.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(s) {
	case "alloc", "malloc", "calloc":
		return OpAlloc, nil
	case "realloc":
		return OpRealloc, nil
	case "free":
		return OpFree, nil
	}
	return 0, fmt.Errorf("unknown op %q", s)
}

// Event is one parsed trace line.
type Event struct {
	Op   Op
	Ptr  uintptr
	Size uint64 // zero for OpFree
	Site watch.Site
	Line int // 1-based line in the trace
}

// SyntaxError reports a malformed trace line.
type SyntaxError struct {
	Line int
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("trace: line %d: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Parse reads every event from r. The first malformed line stops parsing
// with a *SyntaxError.
func Parse(r io.Reader) ([]Event, error) {
	dec := unicode.BOMOverride(encoding.Nop.NewDecoder())
	scanner := bufio.NewScanner(transform.NewReader(r, dec))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	var events []Event
	n := 0
	for scanner.Scan() {
		n++
		ev, ok, err := ParseLine(scanner.Text())
		if err != nil {
			return nil, &SyntaxError{Line: n, Err: err}
		}
		if !ok {
			continue
		}
		ev.Line = n
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trace: reading line %d: %w", n+1, err)
	}
	return events, nil
}

// ParseLine parses a single line. It reports false for blank and comment
// lines.
func ParseLine(line string) (Event, bool, error) {
	trim := strings.TrimSpace(strings.TrimRight(line, "\r"))
	if trim == "" || strings.HasPrefix(trim, commentPrefix) {
		return Event{}, false, nil
	}
	if strings.HasPrefix(trim, "{") {
		ev, err := parseJSON(trim)
		return ev, err == nil, err
	}

	fields := strings.Fields(trim)
	op, err := ParseOp(fields[0])
	if err != nil {
		return Event{}, false, err
	}
	ev := Event{Op: op}
	args := fields[1:]

	want := 3 // ptr size site
	if op == OpFree {
		want = 2 // ptr site
	}
	if len(args) < want-1 || len(args) > want {
		return Event{}, false, fmt.Errorf("%s: expected %d or %d fields after op, got %d", op, want-1, want, len(args))
	}

	if ev.Ptr, err = parsePointer(args[0]); err != nil {
		return Event{}, false, err
	}
	args = args[1:]
	if op != OpFree {
		if ev.Size, err = parseSize(args[0]); err != nil {
			return Event{}, false, err
		}
		args = args[1:]
	}
	if len(args) > 0 {
		ev.Site = watch.ParseSite(args[0])
	}
	return ev, true, nil
}

type jsonEvent struct {
	Op   string          `json:"op"`
	Ptr  json.RawMessage `json:"ptr"`
	Size json.RawMessage `json:"size,omitempty"`
	Site string          `json:"site,omitempty"`
}

func parseJSON(s string) (Event, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	var je jsonEvent
	if err := dec.Decode(&je); err != nil {
		return Event{}, fmt.Errorf("json: %w", err)
	}
	op, err := ParseOp(je.Op)
	if err != nil {
		return Event{}, err
	}
	ev := Event{Op: op, Site: watch.ParseSite(je.Site)}

	if len(je.Ptr) == 0 {
		return Event{}, errors.New("json: missing ptr")
	}
	if ev.Ptr, err = parsePointer(unquote(je.Ptr)); err != nil {
		return Event{}, err
	}
	switch {
	case op == OpFree:
	case len(je.Size) == 0:
		return Event{}, fmt.Errorf("json: %s without size", op)
	default:
		if ev.Size, err = parseSize(unquote(je.Size)); err != nil {
			return Event{}, err
		}
	}
	return ev, nil
}

// unquote accepts both "0x10" and 16 for numeric JSON fields.
func unquote(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func parsePointer(s string) (uintptr, error) {
	v, err := strconv.ParseUint(s, 0, bits.UintSize)
	if err != nil {
		return 0, fmt.Errorf("invalid pointer %q: %w", s, err)
	}
	return uintptr(v), nil
}

func parseSize(s string) (uint64, error) {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return v, nil
}
