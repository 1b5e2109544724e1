package shm

import (
	"unsafe"

	internalshm "github.com/srediag/shmem/internal/shm"
)

// headerMagic is published last when a host finishes writing the header.
// A client never trusts any other header field before observing it.
const headerMagic uint64 = 0x53484d454d303031 // "SHMEM001"

// header is the control block at offset 0 of every mapping. Its layout is
// host-local: no byte order or width guarantees are made across
// architectures.
type header struct {
	version     int64
	ready       uint64
	payloadSize uint64
	mappingSize uint64
	headerSize  uint64
	hostPid     uint64
	magic       uint64
}

// Fails to compile if the header outgrows its reservation.
const _ = HeaderReservedBytes - unsafe.Sizeof(header{})

func headerOf(mem []byte) *header {
	return (*header)(unsafe.Pointer(&mem[0]))
}

func (h *header) init(version int64, mappingSize uint64, hostPid int) {
	h.version = version
	internalshm.AtomicStoreUint64(unsafe.Pointer(&h.ready), 0)
	h.payloadSize = mappingSize - HeaderReservedBytes
	h.mappingSize = mappingSize
	h.headerSize = HeaderReservedBytes
	h.hostPid = uint64(hostPid)
}

func (h *header) publish() {
	internalshm.AtomicStoreUint64(unsafe.Pointer(&h.magic), headerMagic)
}

func (h *header) published() bool {
	return internalshm.AtomicLoadUint64(unsafe.Pointer(&h.magic)) == headerMagic
}

// markReady reports false if the region was already ready.
func (h *header) markReady() bool {
	return internalshm.AtomicCompareAndSwapUint64(unsafe.Pointer(&h.ready), 0, 1)
}

func (h *header) isReady() bool {
	return internalshm.AtomicLoadUint64(unsafe.Pointer(&h.ready)) != 0
}

// consistent reports whether the size fields describe a mapping that fits in
// an object of objectSize bytes.
func (h *header) consistent(objectSize int64) bool {
	return h.headerSize == HeaderReservedBytes &&
		h.mappingSize >= HeaderReservedBytes &&
		h.payloadSize == h.mappingSize-HeaderReservedBytes &&
		objectSize >= 0 && h.mappingSize <= uint64(objectSize)
}
