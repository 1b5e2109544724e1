//go:build !linux

package shm

// Allocate is not available on this platform.
func Allocate(opts AllocOptions) (int, error) { return -1, ErrNotSupported }

// Seal is not available on this platform.
func Seal(fd int) error { return ErrNotSupported }

// MapRegion is not available on this platform.
func MapRegion(fd int, size int) (*MappedRegion, error) { return nil, ErrNotSupported }

// UnmapRegion is not available on this platform.
func UnmapRegion(region *MappedRegion) error {
	if region == nil {
		return nil
	}
	return ErrNotSupported
}

// Unmap is not available on this platform.
func Unmap(addr []byte) error { return ErrNotSupported }

// AdviseHugePages is not available on this platform.
func AdviseHugePages(addr []byte) error { return ErrNotSupported }

// OpenProcessFd is not available on this platform.
func OpenProcessFd(pid, fd int) (int, error) { return -1, ErrNotSupported }

// ObjectSize is not available on this platform.
func ObjectSize(fd int) (int64, int64, error) { return 0, 0, ErrNotSupported }

// Close is not available on this platform.
func Close(fd int) error { return ErrNotSupported }

// HugePageSize returns DefaultHugePageSize.
func HugePageSize() uint64 { return DefaultHugePageSize }

// FreeHugePageBytes is not available on this platform.
func FreeHugePageBytes() (uint64, error) { return 0, ErrNotSupported }
