package watch

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Site is the source location an event was reported from.
type Site struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// Caller returns the Site of its caller's caller, skip frames further up.
// Allocation wrappers call Caller(0) to record where they were invoked from.
func Caller(skip int) Site {
	_, file, line, ok := runtime.Caller(skip + 2)
	if !ok {
		return Site{File: "???"}
	}
	return Site{File: filepath.Base(file), Line: line}
}

// ParseSite parses "file:line". Input without a numeric line suffix becomes
// a Site with Line 0.
func ParseSite(s string) Site {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return Site{File: s}
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil || line < 0 {
		return Site{File: s}
	}
	return Site{File: s[:i], Line: line}
}

func (s Site) String() string {
	if s.Line == 0 {
		return s.File
	}
	return s.File + ":" + strconv.Itoa(s.Line)
}

// siteTable interns file names so records can refer to them by id.
type siteTable struct {
	ids   map[string]uint32
	names []string
}

func newSiteTable() siteTable {
	return siteTable{ids: make(map[string]uint32)}
}

func (t *siteTable) id(file string) uint32 {
	if id, ok := t.ids[file]; ok {
		return id
	}
	id := uint32(len(t.names))
	t.names = append(t.names, file)
	t.ids[file] = id
	return id
}

func (t *siteTable) name(id uint32) string {
	if int(id) >= len(t.names) {
		return "???"
	}
	return t.names[id]
}
