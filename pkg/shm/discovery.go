package shm

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"

	"github.com/shirou/gopsutil/v3/process"

	internalshm "github.com/srediag/shmem/internal/shm"
)

// NameSuffix is appended to every region name before it is attached to the
// backing object, keeping regions apart from unrelated memfd objects held by
// the same process.
const NameSuffix = ".shmem"

// backingName is the name the kernel reports for a region's memory object.
func backingName(name string) string {
	return name + NameSuffix
}

func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("empty region name")
	case len(backingName(name)) > internalshm.MaxNameLen:
		return fmt.Errorf("region name longer than %d bytes", internalshm.MaxNameLen-len(NameSuffix))
	}
	for i := 0; i < len(name); i++ {
		if name[i] == 0 {
			return errors.New("region name contains NUL")
		}
	}
	return nil
}

// Finder locates the descriptor under which process pid holds the backing
// object of the region called name. Implementations return errors matching
// ErrNotFound or ErrPermission.
type Finder interface {
	Find(ctx context.Context, name string, pid int) (int, error)
}

// ProcFinder finds regions by walking /proc/<pid>/fd. The caller needs
// permission to inspect pid's descriptor table. The first matching
// descriptor wins, so a host reusing a name across regions cannot be
// disambiguated.
type ProcFinder struct{}

// Find implements Finder.
func (ProcFinder) Find(ctx context.Context, name string, pid int) (int, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return -1, fmt.Errorf("%w: invalid pid %d", ErrNotFound, pid)
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return -1, fmt.Errorf("%w: no process %d", ErrNotFound, pid)
		}
		return -1, classifyProcError(pid, err)
	}
	files, err := p.OpenFilesWithContext(ctx)
	if err != nil {
		return -1, classifyProcError(pid, err)
	}
	want := backingName(name)
	for _, f := range files {
		if internalshm.MatchesLinkTarget(f.Path, want) {
			return int(f.Fd), nil
		}
	}
	return -1, fmt.Errorf("%w: pid %d holds no %s", ErrNotFound, pid, internalshm.LinkTarget(want))
}

func classifyProcError(pid int, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: pid %d: %w", ErrPermission, pid, err)
	}
	// The process may have exited between lookup and the descriptor walk.
	return fmt.Errorf("%w: pid %d: %w", ErrNotFound, pid, err)
}
