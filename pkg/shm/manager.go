/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	internalshm "github.com/srediag/shmem/internal/shm"
)

// Manager creates and attaches regions with one Config. Managers are safe
// for concurrent use. Region names are unique per process, not per Manager.
type Manager struct {
	config  *Config
	layout  Layout
	finder  Finder
	metrics *metrics
}

// NewManager returns a Manager for config. A nil config uses DefaultConfig.
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	config = config.withDefaults()
	return &Manager{
		config:  config,
		layout:  config.layout(),
		finder:  config.Finder,
		metrics: newMetrics(config.Registerer, config.Meter),
	}, nil
}

var defaultManager = sync.OnceValues(func() (*Manager, error) {
	return NewManager(DefaultConfig())
})

// Create hosts a region using DefaultConfig. See Manager.Create.
func Create(ctx context.Context, version int64, name string, size int) (*Region, error) {
	m, err := defaultManager()
	if err != nil {
		return nil, err
	}
	return m.Create(ctx, version, name, size)
}

// Attach attaches to a region using DefaultConfig. See Manager.Attach.
func Attach(ctx context.Context, version int64, name string, pid int) (*Region, error) {
	m, err := defaultManager()
	if err != nil {
		return nil, err
	}
	return m.Attach(ctx, version, name, pid)
}

// WithAttached attaches using DefaultConfig. See Manager.WithAttached.
func WithAttached(ctx context.Context, version int64, name string, pid int, fn func(*Region) error) error {
	m, err := defaultManager()
	if err != nil {
		return err
	}
	return m.WithAttached(ctx, version, name, pid, fn)
}

// NewBlob hosts a blob using DefaultConfig. See Manager.NewBlob.
func NewBlob(ctx context.Context, size int) (*Region, error) {
	m, err := defaultManager()
	if err != nil {
		return nil, err
	}
	return m.NewBlob(ctx, size)
}

// Layout returns the layout regions created by m are sized with.
func (m *Manager) Layout() Layout {
	return m.layout
}

// Create allocates a region of at least size payload bytes under name and
// writes a header carrying version. Clients can discover it as soon as Create
// returns but wait until the host calls MarkReady. The caller owns the
// region and must Close it.
//
// Create fails with ErrNameCollision if this process already hosts name, with
// ErrAllocation if the backing object cannot be created, and with ErrMapping
// if it cannot be mapped. A failed Create leaves nothing behind.
func (m *Manager) Create(ctx context.Context, version int64, name string, size int) (region *Region, err error) {
	_, span := m.config.Tracer.Start(ctx, "shm.Create", trace.WithAttributes(
		attribute.String("shm.name", name),
		attribute.Int64("shm.version", version),
		attribute.Int("shm.size", size),
	))
	defer func() {
		m.metrics.observeCreate(err)
		endSpan(span, err)
	}()

	if err := validateName(name); err != nil {
		return nil, newError(opCreate, name, 0, ErrAllocation, err)
	}
	if size < 0 {
		return nil, newError(opCreate, name, 0, ErrAllocation, fmt.Errorf("negative size %d", size))
	}
	if uint64(size) > math.MaxInt-HeaderReservedBytes-m.layout.granularity() {
		return nil, newError(opCreate, name, 0, ErrAllocation, fmt.Errorf("size %d too large", size))
	}
	total := m.layout.Plan(uint64(size))

	region = &Region{
		name:    name,
		version: version,
		pid:     os.Getpid(),
		host:    true,
		mgr:     m,
	}
	// Registry readers see the region as soon as it is reserved, so it is
	// locked before it becomes visible and stays locked until it is either
	// mapped or marked closed.
	region.mu.Lock()
	if !hostedRegions.reserve(name, region) {
		region.mu.Unlock()
		return nil, newError(opCreate, name, 0, ErrNameCollision, nil)
	}
	err = m.populate(region, total)
	if err != nil {
		region.closed = true
	}
	region.mu.Unlock()
	if err != nil {
		hostedRegions.release(name, region)
		return nil, err
	}

	internalLogger.infof("region %q: created version=%d payload=%d mapping=%d", name, version, region.Size(), total)
	if debugMode {
		internalLogger.debugf("%s", DebugRegionDetail(region))
	}
	return region, nil
}

// populate backs a reserved region with a sealed, mapped memory object and
// publishes its header.
func (m *Manager) populate(region *Region, total uint64) error {
	name := region.name
	if m.config.HugeTLB {
		free, err := internalshm.FreeHugePageBytes()
		switch {
		case err != nil:
			internalLogger.debugf("region %q: cannot read huge page pool: %v", name, err)
		case free < total:
			return newError(opCreate, name, 0, ErrAllocation,
				fmt.Errorf("huge page pool has %d free bytes, need %d", free, total))
		}
	}

	fd, err := internalshm.Allocate(internalshm.AllocOptions{
		Name:    backingName(name),
		Size:    int(total),
		HugeTLB: m.config.HugeTLB,
	})
	if err != nil {
		return newError(opCreate, name, 0, ErrAllocation, err)
	}
	if err := internalshm.Seal(fd); err != nil {
		internalLogger.warnf("region %q: size not sealed: %v", name, err)
	}
	mapped, err := internalshm.MapRegion(fd, int(total))
	if err != nil {
		_ = internalshm.Close(fd)
		return newError(opCreate, name, 0, ErrMapping, err)
	}
	if !m.config.HugeTLB {
		if err := internalshm.AdviseHugePages(mapped.Addr); err != nil {
			internalLogger.debugf("region %q: %v", name, err)
		}
	}

	hdr := headerOf(mapped.Addr)
	hdr.init(region.version, total, region.pid)
	hdr.publish()
	region.bind(mapped)
	return nil
}

// Attach maps the region process pid hosts under name. It checks the header
// version against version, then blocks until the host marks the region
// ready. Config.ReadyTimeout bounds the whole call, discovery included.
//
// Attach fails with ErrPermission if pid's descriptors cannot be inspected,
// ErrNotFound if pid hosts no such region, ErrVersionMismatch if the versions
// differ, and ErrReadinessTimeout if the host does not finish in time. A
// failed Attach leaves no mapping behind. The caller owns the region and
// must Close it.
func (m *Manager) Attach(ctx context.Context, version int64, name string, pid int) (region *Region, err error) {
	ctx, span := m.config.Tracer.Start(ctx, "shm.Attach", trace.WithAttributes(
		attribute.String("shm.name", name),
		attribute.Int64("shm.version", version),
		attribute.Int("shm.pid", pid),
	))
	defer func() {
		m.metrics.observeAttach(ctx, err)
		endSpan(span, err)
	}()

	if err := validateName(name); err != nil {
		return nil, newError(opAttach, name, pid, ErrNotFound, err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, m.config.ReadyTimeout)
	defer cancel()

	hostFd, err := m.finder.Find(waitCtx, name, pid)
	if err != nil {
		return nil, newError(opAttach, name, pid, discoveryKind(err), err)
	}
	fd, err := internalshm.OpenProcessFd(pid, hostFd)
	if err != nil {
		return nil, newError(opAttach, name, pid, discoveryKind(err), err)
	}
	internalLogger.tracef("region %q: opened pid %d fd %d as fd %d", name, pid, hostFd, fd)

	mapped, stored, err := m.mapPublished(waitCtx, fd)
	if err != nil {
		return nil, newError(opAttach, name, pid, attachKind(err), err)
	}
	if stored != version {
		_ = internalshm.UnmapRegion(mapped)
		return nil, newError(opAttach, name, pid, ErrVersionMismatch,
			fmt.Errorf("host has version %d, want %d", stored, version))
	}

	region = &Region{
		name:    name,
		version: stored,
		pid:     pid,
		mgr:     m,
	}
	region.bind(mapped)

	start := time.Now()
	err = m.config.waitForReady(waitCtx, region)
	m.metrics.observeReadyWait(ctx, time.Since(start))
	if err != nil {
		_ = region.Close()
		return nil, newError(opAttach, name, pid, ErrReadinessTimeout, err)
	}
	internalLogger.debugf("region %q: attached to pid %d, payload=%d", name, pid, region.Size())
	return region, nil
}

// mapPublished waits until the host has sized the object behind fd and
// published its header, then maps the whole region and returns the stored
// version. It takes ownership of fd.
func (m *Manager) mapPublished(ctx context.Context, fd int) (_ *internalshm.MappedRegion, version int64, err error) {
	owned := true
	defer func() {
		if err != nil && owned {
			_ = internalshm.Close(fd)
		}
	}()

	// The descriptor is discoverable before the host sizes the object.
	var size, probeLen int64
	err = m.config.waitFor(ctx, func() (bool, error) {
		s, blksize, err := internalshm.ObjectSize(fd)
		if err != nil {
			return false, errMapping{err}
		}
		size, probeLen = s, max(int64(HeaderReservedBytes), blksize)
		return size >= probeLen, nil
	})
	if err != nil {
		return nil, 0, err
	}

	probe, err := internalshm.MapRegion(fd, int(probeLen))
	if err != nil {
		return nil, 0, errMapping{err}
	}
	hdr := headerOf(probe.Addr)
	err = m.config.waitFor(ctx, func() (bool, error) {
		return hdr.published(), nil
	})
	if err == nil && !hdr.consistent(size) {
		err = errMapping{fmt.Errorf("header describes %d bytes, object has %d", hdr.mappingSize, size)}
	}
	mappingSize, version := hdr.mappingSize, hdr.version
	if uerr := internalshm.Unmap(probe.Addr); uerr != nil && err == nil {
		err = errMapping{uerr}
	}
	if err != nil {
		return nil, 0, err
	}

	mapped, err := internalshm.MapRegion(fd, int(mappingSize))
	if err != nil {
		return nil, 0, errMapping{err}
	}
	owned = false
	return mapped, version, nil
}

// errMapping marks attach failures that are not a missed deadline.
type errMapping struct{ err error }

func (e errMapping) Error() string { return e.err.Error() }
func (e errMapping) Unwrap() error { return e.err }

func attachKind(err error) error {
	var me errMapping
	if errors.As(err, &me) {
		return ErrMapping
	}
	return ErrReadinessTimeout
}

func discoveryKind(err error) error {
	if errors.Is(err, ErrPermission) || errors.Is(err, fs.ErrPermission) {
		return ErrPermission
	}
	return ErrNotFound
}

// WithAttached attaches to a region, runs fn on it and closes it on every
// exit path, fn panicking included.
func (m *Manager) WithAttached(ctx context.Context, version int64, name string, pid int, fn func(*Region) error) error {
	region, err := m.Attach(ctx, version, name, pid)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := region.Close(); cerr != nil {
			internalLogger.warnf("region %q: close after use: %v", name, cerr)
		}
	}()
	return fn(region)
}

var blobSeq atomic.Uint64

// NewBlob hosts a ready region of at least size bytes under a generated
// name, for callers that only need shared huge page backed memory.
func (m *Manager) NewBlob(ctx context.Context, size int) (*Region, error) {
	name := fmt.Sprintf("blob-%d-%d", os.Getpid(), blobSeq.Add(1))
	region, err := m.Create(ctx, 0, name, size)
	if err != nil {
		return nil, err
	}
	region.MarkReady()
	return region, nil
}
