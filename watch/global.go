package watch

import (
	"sync"

	"github.com/joshuapare/memwatch/internal/logging"
)

var (
	defaultMu  sync.Mutex
	defaultReg *Registry
)

// Init creates the process-wide registry. It fails with ErrAlreadyInitialized
// while a previous instance is live; call Deinit first to start over.
func Init(cfg Config, opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultReg != nil {
		return ErrAlreadyInitialized
	}
	r, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	defaultReg = r
	return nil
}

// Deinit logs and returns the final report of the process-wide registry,
// then closes it.
func Deinit() (Report, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultReg == nil {
		return Report{}, ErrNotInitialized
	}
	r := defaultReg
	defaultReg = nil

	rep := r.Report()
	rep.Log(r.log())
	if err := r.Close(); err != nil {
		return rep, err
	}
	return rep, nil
}

// NotifyAllocate forwards to the process-wide registry.
func NotifyAllocate(ptr uintptr, size uint64, site Site) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultReg.NotifyAllocate(ptr, size, site)
}

// NotifyReallocate forwards to the process-wide registry.
func NotifyReallocate(ptr uintptr, size uint64, site Site) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultReg.NotifyReallocate(ptr, size, site)
}

// NotifyFree forwards to the process-wide registry.
func NotifyFree(ptr uintptr, site Site) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultReg.NotifyFree(ptr, site)
}

// CurrentReport returns the process-wide registry's report without closing it.
func CurrentReport() (Report, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultReg == nil {
		logging.L.Debug("watch: report before init")
		return Report{}, ErrNotInitialized
	}
	return defaultReg.Report(), nil
}
