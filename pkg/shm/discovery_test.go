package shm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	internalshm "github.com/srediag/shmem/internal/shm"
)

func TestValidateName(t *testing.T) {
	assert.NoError(t, validateName("stats"))
	assert.NoError(t, validateName(strings.Repeat("x", internalshm.MaxNameLen-len(NameSuffix))))

	assert.Error(t, validateName(""))
	assert.Error(t, validateName(strings.Repeat("x", internalshm.MaxNameLen-len(NameSuffix)+1)))
	assert.Error(t, validateName("a\x00b"))
}

func TestBackingName(t *testing.T) {
	assert.Equal(t, "stats.shmem", backingName("stats"))
}

func TestProcFinderInvalidPid(t *testing.T) {
	for _, pid := range []int{0, -1} {
		_, err := ProcFinder{}.Find(context.Background(), "stats", pid)
		assert.ErrorIs(t, err, ErrNotFound, "pid %d", pid)
	}
}
