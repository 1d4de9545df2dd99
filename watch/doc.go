// Package watch is a memory watchdog: it records every allocation,
// reallocation and free a host program reports, so that allocations which
// were never freed can be listed at shutdown or on demand.
//
// # Overview
//
// A Registry keeps one record per live allocation, keyed by the allocated
// pointer's value. Records live in the slots of a fixed-capacity pool.Pool,
// and are chained into hash buckets selected from the pointer. The pointer is
// an opaque key: it is hashed and compared, never dereferenced.
//
// The host wraps its own allocator and forwards events:
//
//	reg, err := watch.New(watch.Config{MaxTracked: 20000, Buckets: 1024})
//	if err != nil {
//	    return err
//	}
//	defer reg.Close()
//
//	func xmalloc(n int) unsafe.Pointer {
//	    p := C.malloc(C.size_t(n))
//	    _ = reg.NotifyAllocate(uintptr(p), uint64(n), watch.Caller(0))
//	    return p
//	}
//
//	func xfree(p unsafe.Pointer) {
//	    _ = reg.NotifyFree(uintptr(p), watch.Caller(0))
//	    C.free(p)
//	}
//
//	// at shutdown
//	fmt.Print(reg.Report())
//
// # Degradation
//
// The registry is a diagnostic aid, not a safety gate. When the record pool
// is full the event is logged with the pool statistics and the record is
// dropped (ErrPoolExhausted); that allocation then never shows up as a leak.
// A non-zero alloc_fail in the report means MaxTracked should be raised; the
// alloc_peek value shows how many allocations were live at once.
//
// A free of a pointer the registry does not know is logged and reported as
// ErrUntrackedFree. Nothing in this package panics or exits.
//
// # Default Instance
//
// Init, Deinit and the package-level Notify functions manage one
// process-wide registry behind a mutex. Lifetime is explicit: nothing is
// tracked before Init, and Deinit returns the final report so the default
// instance can be initialised again.
//
// # Thread Safety
//
// A Registry is not thread-safe. Callers must synchronize access externally;
// the default instance does this for its own functions.
package watch
