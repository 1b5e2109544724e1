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
	"sync"

	internalshm "github.com/srediag/shmem/internal/shm"
)

// Region is a handle on a named shared memory region, either hosted by this
// process (returned by Create) or attached from another one (returned by
// Attach). Payload access through Bytes is unmediated shared memory: the
// region provides no locking over it.
//
// A Region must not be used after Close.
type Region struct {
	name    string
	version int64
	pid     int
	host    bool

	mgr    *Manager
	mapped *internalshm.MappedRegion
	hdr    *header
	data   []byte

	// mu keeps status reads off a header that Close is unmapping. Payload
	// access through Bytes is not covered.
	mu       sync.RWMutex
	closed   bool
	closeErr error
}

// bind points the handle at a mapping whose header is already valid.
func (r *Region) bind(mapped *internalshm.MappedRegion) {
	r.mapped = mapped
	r.hdr = headerOf(mapped.Addr)
	r.data = mapped.Addr[HeaderReservedBytes : HeaderReservedBytes+r.hdr.payloadSize]
}

// Bytes returns the payload, starting HeaderReservedBytes into the mapping.
func (r *Region) Bytes() []byte {
	return r.data
}

// Size returns the usable payload size. It is at least the size requested
// from Create.
func (r *Region) Size() int {
	return len(r.data)
}

// AbsoluteSize returns the size of the whole mapping, header and rounding
// included. It is a multiple of the huge page size.
func (r *Region) AbsoluteSize() int {
	return len(r.mapped.Addr)
}

// Mapping returns the whole mapping including the header.
func (r *Region) Mapping() []byte {
	return r.mapped.Addr
}

// Name returns the name the region was created or attached under.
func (r *Region) Name() string { return r.name }

// Version returns the version recorded in the header.
func (r *Region) Version() int64 { return r.version }

// Pid returns the host process id.
func (r *Region) Pid() int { return r.pid }

// IsHost reports whether this process created the region.
func (r *Region) IsHost() bool { return r.host }

// Ready reports whether the host has called MarkReady. A closed region is
// never ready.
func (r *Region) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.closed && r.hdr.isReady()
}

// Intact reports whether the header still carries the values the host
// published. A client scribbling over the header makes this false.
func (r *Region) Intact() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.closed && r.hdr.published() && r.hdr.consistent(int64(len(r.mapped.Addr)))
}

// MarkReady publishes the region to clients. Every header and payload write
// made before the call is visible to a client once it observes readiness, so
// the host must finish initializing the payload first. Readiness is never
// withdrawn; further calls have no effect.
func (r *Region) MarkReady() {
	if !r.host {
		internalLogger.warnf("region %q: MarkReady called on a client handle, ignored", r.name)
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		internalLogger.warnf("region %q: MarkReady called after Close, ignored", r.name)
		return
	}
	if !r.hdr.markReady() {
		internalLogger.debugf("region %q: already ready", r.name)
		return
	}
	internalLogger.infof("region %q: ready", r.name)
}

// WaitForReady blocks until the host marks the region ready or ctx ends.
func (r *Region) WaitForReady(ctx context.Context) error {
	return r.mgr.config.waitForReady(ctx, r)
}

// readyState is the readiness condition polled by waiters.
func (r *Region) readyState() (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false, ErrClosed
	}
	return r.hdr.isReady(), nil
}

// Close unmaps the region and drops this process's reference to the backing
// object. Closing the host handle removes the region from discovery; mappings
// clients already hold stay valid. Close is idempotent.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.closeErr
	}
	r.closed = true
	if r.host {
		hostedRegions.release(r.name, r)
		r.mgr.metrics.observeHostClose()
	}
	r.data = nil
	if err := internalshm.UnmapRegion(r.mapped); err != nil {
		internalLogger.errorf("region %q: close: %v", r.name, err)
		r.closeErr = err
	}
	internalLogger.debugf("region %q: closed (host=%t)", r.name, r.host)
	return r.closeErr
}
