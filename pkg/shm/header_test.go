package shm

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHeader(t *testing.T) *header {
	t.Helper()
	mem := make([]byte, HeaderReservedBytes)
	require.Zero(t, uintptr(unsafe.Pointer(&mem[0]))%8)
	return headerOf(mem)
}

func TestHeaderFitsReservation(t *testing.T) {
	assert.LessOrEqual(t, unsafe.Sizeof(header{}), uintptr(HeaderReservedBytes))
}

func TestHeaderPublish(t *testing.T) {
	h := newTestHeader(t)
	h.init(7, 2<<20, 42)
	assert.False(t, h.published())
	assert.False(t, h.isReady())

	h.publish()
	assert.True(t, h.published())
	assert.Equal(t, int64(7), h.version)
	assert.Equal(t, uint64(2<<20-HeaderReservedBytes), h.payloadSize)
	assert.Equal(t, uint64(HeaderReservedBytes), h.headerSize)
	assert.Equal(t, uint64(42), h.hostPid)
}

func TestHeaderMarkReadyOnce(t *testing.T) {
	h := newTestHeader(t)
	h.init(1, 2<<20, 1)
	h.publish()

	assert.True(t, h.markReady())
	assert.True(t, h.isReady())
	assert.False(t, h.markReady())
	assert.True(t, h.isReady())
}

func TestHeaderConsistent(t *testing.T) {
	h := newTestHeader(t)
	h.init(1, 2<<20, 1)

	assert.True(t, h.consistent(2<<20))
	assert.True(t, h.consistent(4<<20))
	assert.False(t, h.consistent(1<<20), "mapping larger than object")
	assert.False(t, h.consistent(-1))

	h.headerSize = 8192
	assert.False(t, h.consistent(2<<20))
	h.headerSize = HeaderReservedBytes

	h.payloadSize++
	assert.False(t, h.consistent(2<<20))
}
