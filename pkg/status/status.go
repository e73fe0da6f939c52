// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package status implements the shared status region between the harness and
// its child: a process-shared semaphore that gates the child after a resume and
// an int32 value the child reports back through the harness.
//
// The region is laid out as the C struct
//
//	struct { sem_t sem; int value; };
//
// so a C target can map it from its descriptor and use sem_wait directly.
package status

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/tzfuzz/execsrv/pkg/osutil"
)

const (
	// Size is the size of the shared record.
	Size        = 40
	valueOffset = SemSize
)

type Region struct {
	file *os.File
	mem  []byte
	sem  *Semaphore
}

// Create allocates the region on a new memfd, maps it and initializes the
// semaphore to 0 and the value to 0.
func Create() (*Region, error) {
	f, mem, err := osutil.CreateMemMappedFile("execsrv-os-state", Size)
	if err != nil {
		return nil, err
	}
	r, err := newRegion(f, mem)
	if err != nil {
		osutil.CloseMemMappedFile(f, mem)
		return nil, err
	}
	if err := r.sem.Init(0); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to init semaphore: %w", err)
	}
	r.SetValue(0)
	return r, nil
}

// Open maps a region created by another process, e.g. the child side
// opening the descriptor it inherited.
func Open(f *os.File) (*Region, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat status region: %w", err)
	}
	if st.Size() < Size {
		return nil, fmt.Errorf("status region is too small: %v bytes", st.Size())
	}
	mem, err := osutil.MapFile(f, Size)
	if err != nil {
		return nil, err
	}
	r, err := newRegion(f, mem)
	if err != nil {
		osutil.CloseMemMappedFile(f, mem)
		return nil, err
	}
	return r, nil
}

func newRegion(f *os.File, mem []byte) (*Region, error) {
	sem, err := NewSemaphore(mem)
	if err != nil {
		return nil, err
	}
	return &Region{file: f, mem: mem, sem: sem}, nil
}

// File returns the memfd backing the region.
func (r *Region) File() *os.File {
	return r.file
}

func (r *Region) Sem() *Semaphore {
	return r.sem
}

// Value returns whatever the child last stored.
func (r *Region) Value() int32 {
	return atomic.LoadInt32(r.value())
}

func (r *Region) SetValue(v int32) {
	atomic.StoreInt32(r.value(), v)
}

// Release posts the semaphore once, letting a child blocked in Wait proceed.
func (r *Region) Release() error {
	return r.sem.Post()
}

// Wait is the child side of Release.
func (r *Region) Wait() error {
	return r.sem.Wait()
}

func (r *Region) Close() error {
	return osutil.CloseMemMappedFile(r.file, r.mem)
}

func (r *Region) value() *int32 {
	return (*int32)(unsafe.Pointer(&r.mem[valueOffset]))
}
