//go:build linux

package shm

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Allocate creates an anonymous memory object named opts.Name and sizes it to
// opts.Size bytes. The object is visible in /proc/<pid>/fd under that name
// until the returned descriptor is closed.
func Allocate(opts AllocOptions) (int, error) {
	if opts.Size <= 0 {
		return -1, fmt.Errorf("allocate %q: invalid size %d", opts.Name, opts.Size)
	}
	flags := unix.MFD_CLOEXEC | unix.MFD_ALLOW_SEALING
	if opts.HugeTLB {
		flags |= unix.MFD_HUGETLB
	}
	fd, err := unix.MemfdCreate(opts.Name, flags)
	if err != nil {
		return -1, fmt.Errorf("memfd_create %q: %w", opts.Name, err)
	}
	if err := unix.Ftruncate(fd, int64(opts.Size)); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("ftruncate %q to %d: %w", opts.Name, opts.Size, err)
	}
	return fd, nil
}

// Seal fixes the size of the memory object behind fd so no party can shrink
// it under another party's mapping.
func Seal(fd int) error {
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK|unix.F_SEAL_GROW|unix.F_SEAL_SEAL); err != nil {
		return fmt.Errorf("fcntl F_ADD_SEALS: %w", err)
	}
	return nil
}

// MapRegion maps size bytes of the object behind fd read/write and shared.
// The returned region takes ownership of fd.
func MapRegion(fd int, size int) (*MappedRegion, error) {
	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	return &MappedRegion{Addr: addr, Fd: fd}, nil
}

// UnmapRegion unmaps the region and closes its descriptor.
func UnmapRegion(region *MappedRegion) error {
	if region == nil {
		return nil
	}
	var errs []error
	if region.Addr != nil {
		if err := unix.Munmap(region.Addr); err != nil {
			errs = append(errs, fmt.Errorf("munmap: %w", err))
		}
		region.Addr = nil
	}
	if region.Fd >= 0 {
		if err := unix.Close(region.Fd); err != nil {
			errs = append(errs, fmt.Errorf("close fd %d: %w", region.Fd, err))
		}
		region.Fd = -1
	}
	return errors.Join(errs...)
}

// Unmap releases a mapping without touching the descriptor it came from.
func Unmap(addr []byte) error {
	if err := unix.Munmap(addr); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// AdviseHugePages asks the kernel to back addr with transparent huge pages.
func AdviseHugePages(addr []byte) error {
	if err := unix.Madvise(addr, unix.MADV_HUGEPAGE); err != nil {
		return fmt.Errorf("madvise MADV_HUGEPAGE: %w", err)
	}
	return nil
}

// OpenProcessFd opens a new descriptor on the object process pid holds as fd.
// The result refers to the same pages, not a copy.
func OpenProcessFd(pid, fd int) (int, error) {
	path := fmt.Sprintf("/proc/%d/fd/%d", pid, fd)
	nfd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return nfd, nil
}

// ObjectSize returns the size of the object behind fd and its preferred
// mapping block size.
func ObjectSize(fd int) (size int64, blksize int64, err error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, 0, fmt.Errorf("fstat fd %d: %w", fd, err)
	}
	return st.Size, int64(st.Blksize), nil
}

// Close closes a descriptor that was never handed to MapRegion.
func Close(fd int) error {
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close fd %d: %w", fd, err)
	}
	return nil
}
