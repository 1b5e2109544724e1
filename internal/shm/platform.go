// Package shm contains platform-specific helpers for named shared memory regions.
package shm

import (
	"errors"
	"strings"
)

// ErrNotSupported is returned where memfd objects or /proc descriptor
// introspection are unavailable.
var ErrNotSupported = errors.New("shm: named shared memory regions are not supported on this platform")

const (
	// MaxNameLen is the longest name the kernel accepts for a memfd object.
	MaxNameLen = 249
	// DefaultHugePageSize is used when the system huge page size cannot be read.
	DefaultHugePageSize = 2 << 20

	memfdLinkPrefix = "/memfd:"
	deletedSuffix   = " (deleted)"
)

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	// Fd is the descriptor the mapping was created from. It stays open for the
	// lifetime of the mapping so the backing object outlives this process's
	// own use of it.
	Fd int
}

// AllocOptions defines options for allocating a backing memory object.
type AllocOptions struct {
	Name    string
	Size    int
	HugeTLB bool
}

// LinkTarget returns the /proc/<pid>/fd link target of a memfd object named name.
func LinkTarget(name string) string {
	return memfdLinkPrefix + name
}

// MatchesLinkTarget reports whether target, as read back from /proc/<pid>/fd,
// refers to the memfd object named name. memfd objects have no directory
// entry, so the kernel may report them as deleted.
func MatchesLinkTarget(target, name string) bool {
	return strings.TrimSuffix(target, deletedSuffix) == LinkTarget(name)
}
