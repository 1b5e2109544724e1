package shm

import internalshm "github.com/srediag/shmem/internal/shm"

// HeaderReservedBytes is the control block reserved at the start of every
// mapping. Payload always begins at this offset. Callers packing payloads
// against huge page boundaries should subtract it from their budget.
const HeaderReservedBytes = 4096

// DefaultHugePageSize is the mapping granularity used by Plan.
const DefaultHugePageSize = internalshm.DefaultHugePageSize

// Layout sizes mappings for a given huge page granularity.
type Layout struct {
	// HugePageSize must be a power of two. Zero means DefaultHugePageSize.
	HugePageSize uint64
}

// Plan returns the total mapping size needed to hold requested payload bytes
// after the header, rounded up to the huge page size.
func (l Layout) Plan(requested uint64) uint64 {
	hp := l.granularity()
	return (HeaderReservedBytes + requested + hp - 1) &^ (hp - 1)
}

func (l Layout) granularity() uint64 {
	if l.HugePageSize == 0 {
		return DefaultHugePageSize
	}
	return l.HugePageSize
}

// Plan sizes a mapping with DefaultHugePageSize granularity.
func Plan(requested uint64) uint64 {
	return Layout{}.Plan(requested)
}

// OverheadBytes returns the bytes of every mapping not addressable through
// Region.Bytes.
func OverheadBytes() int {
	return HeaderReservedBytes
}
