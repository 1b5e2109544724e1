//go:build linux

package shm

import (
	"fmt"
	"sync"

	"github.com/prometheus/procfs"
)

var hugePageSize = sync.OnceValue(func() uint64 {
	mi, err := readMeminfo()
	if err != nil || mi.Hugepagesize == nil || *mi.Hugepagesize == 0 {
		return DefaultHugePageSize
	}
	return *mi.Hugepagesize * 1024
})

// HugePageSize returns the system default huge page size in bytes as reported
// by /proc/meminfo, or DefaultHugePageSize when it cannot be read.
func HugePageSize() uint64 {
	return hugePageSize()
}

// FreeHugePageBytes returns how many bytes of the hugetlbfs pool are free.
func FreeHugePageBytes() (uint64, error) {
	mi, err := readMeminfo()
	if err != nil {
		return 0, err
	}
	if mi.HugePagesFree == nil || mi.Hugepagesize == nil {
		return 0, fmt.Errorf("meminfo: huge page counters missing")
	}
	return *mi.HugePagesFree * *mi.Hugepagesize * 1024, nil
}

func readMeminfo() (procfs.Meminfo, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return procfs.Meminfo{}, fmt.Errorf("open procfs: %w", err)
	}
	mi, err := fs.Meminfo()
	if err != nil {
		return procfs.Meminfo{}, fmt.Errorf("read meminfo: %w", err)
	}
	return mi, nil
}
