package shm

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	err := error(newError(opAttach, "stats", 12, ErrPermission, fs.ErrPermission))

	assert.ErrorIs(t, err, ErrPermission)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.NotErrorIs(t, err, ErrNotFound)

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, opAttach, e.Op)
	assert.Equal(t, 12, e.Pid)
	assert.Equal(t, `attach "stats" (pid 12): shm: not permitted to inspect host descriptors: permission denied`, err.Error())
}

func TestErrorMessageDoesNotRepeatKind(t *testing.T) {
	cause := fmt.Errorf("%w: pid 3 holds no /memfd:x.shmem", ErrNotFound)
	err := newError(opAttach, "x", 3, ErrNotFound, cause)
	assert.Equal(t, `attach "x" (pid 3): shm: region not found: pid 3 holds no /memfd:x.shmem`, err.Error())

	err = newError(opCreate, "x", 0, ErrNameCollision, nil)
	assert.Equal(t, `create "x": shm: region name already hosted by this process`, err.Error())
}

func TestKindLabel(t *testing.T) {
	cases := map[string]error{
		"ok":                nil,
		"name_collision":    newError(opCreate, "n", 0, ErrNameCollision, nil),
		"allocation":        ErrAllocation,
		"mapping":           ErrMapping,
		"permission":        ErrPermission,
		"not_found":         ErrNotFound,
		"version_mismatch":  ErrVersionMismatch,
		"readiness_timeout": newError(opAttach, "n", 1, ErrReadinessTimeout, errors.New("deadline")),
		"other":             errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, kindLabel(err))
	}
}

func TestDiscoveryKind(t *testing.T) {
	assert.Equal(t, ErrPermission, discoveryKind(fs.ErrPermission))
	assert.Equal(t, ErrPermission, discoveryKind(fmt.Errorf("%w: pid 1", ErrPermission)))
	assert.Equal(t, ErrNotFound, discoveryKind(fs.ErrNotExist))
	assert.Equal(t, ErrNotFound, discoveryKind(errors.New("gone")))
}

func TestAttachKind(t *testing.T) {
	assert.Equal(t, ErrMapping, attachKind(errMapping{errors.New("mmap")}))
	assert.Equal(t, ErrReadinessTimeout, attachKind(fmt.Errorf("wait: %w", errors.New("deadline"))))
}
