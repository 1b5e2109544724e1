// Package shm publishes named, huge page backed shared memory regions between
// processes on one machine.
//
// A host process creates a region under a name, fills its payload and marks
// it ready. A client that knows the host's pid and the region name attaches
// to the same physical pages, checks the version recorded in the region
// header and waits for readiness before touching the payload:
//
//	// host
//	region, err := shm.Create(ctx, 3, "stats", 4096)
//	copy(region.Bytes(), snapshot)
//	region.MarkReady()
//
//	// client
//	region, err := shm.Attach(ctx, 3, "stats", hostPid)
//	defer region.Close()
//	use(region.Bytes())
//
// Discovery walks /proc/<pid>/fd, so a client needs permission to inspect
// the host's descriptors (same user, or CAP_SYS_PTRACE). Only Linux is
// supported; elsewhere every call fails with ErrNotSupported.
//
// Every mapping starts with a HeaderReservedBytes control block and is
// rounded up to the huge page size. The payload carries no protocol of its
// own: after Attach, concurrent access is the caller's business.
package shm
