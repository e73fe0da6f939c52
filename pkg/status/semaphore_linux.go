// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package status

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SemSize is sizeof(sem_t) on 64-bit Linux.
const SemSize = 32

// The layout follows glibc's struct new_sem for 64-bit atomics:
//
//	uint64_t data;  // value in the low 32 bits, number of waiters in the high 32 bits
//	int private;    // FUTEX_SHARED (FUTEX_PRIVATE_FLAG) for process-shared semaphores
//	int pad;
//
// Only little-endian is supported, so the value word is at offset 0.
const (
	semNwaitersShift = 32
	semValueMax      = math.MaxInt32
	semPrivateOffset = 8
	futexShared      = futexPrivateFlag
)

// Futex operations from <linux/futex.h>.
const (
	futexWait        = 0
	futexWake        = 1
	futexPrivateFlag = 128
)

// Semaphore is a process-shared counting semaphore in shared memory that is
// binary compatible with a sem_t initialized by sem_init(sem, 1, value).
// A C process mapping the same memory can sem_wait on it while we Post.
type Semaphore struct {
	mem []byte
}

// NewSemaphore wraps the first SemSize bytes of mem without initializing them.
func NewSemaphore(mem []byte) (*Semaphore, error) {
	if len(mem) < SemSize {
		return nil, fmt.Errorf("semaphore needs %v bytes, have %v", SemSize, len(mem))
	}
	if uintptr(unsafe.Pointer(&mem[0]))%8 != 0 {
		return nil, fmt.Errorf("semaphore memory is not 8-byte aligned")
	}
	if unsafe.Sizeof(uintptr(0)) != 8 || !littleEndian() {
		return nil, fmt.Errorf("sem_t layout is only known for 64-bit little-endian")
	}
	return &Semaphore{mem: mem[:SemSize:SemSize]}, nil
}

// Init is sem_init(sem, 1, value).
func (s *Semaphore) Init(value uint32) error {
	if value > semValueMax {
		return fmt.Errorf("semaphore value %v is too large", value)
	}
	for i := range s.mem {
		s.mem[i] = 0
	}
	atomic.StoreInt32(s.private(), futexShared)
	atomic.StoreUint64(s.data(), uint64(value))
	return nil
}

// Value returns the current count, like sem_getvalue.
func (s *Semaphore) Value() int {
	return int(uint32(atomic.LoadUint64(s.data())))
}

// Waiters returns the number of processes registered as blocked in sem_wait.
func (s *Semaphore) Waiters() int {
	return int(atomic.LoadUint64(s.data()) >> semNwaitersShift)
}

// Post increments the count and wakes one waiter if there may be any, like sem_post.
func (s *Semaphore) Post() error {
	p := s.data()
	for {
		d := atomic.LoadUint64(p)
		if uint32(d) == semValueMax {
			return fmt.Errorf("semaphore post: %w", unix.EOVERFLOW)
		}
		if !atomic.CompareAndSwapUint64(p, d, d+1) {
			continue
		}
		if d>>semNwaitersShift == 0 {
			return nil
		}
		if err := s.futex(futexWake, 1); err != nil {
			return fmt.Errorf("semaphore wake: %w", err)
		}
		return nil
	}
}

// TryWait decrements the count if it is positive, like sem_trywait.
func (s *Semaphore) TryWait() bool {
	p := s.data()
	for {
		d := atomic.LoadUint64(p)
		if uint32(d) == 0 {
			return false
		}
		if atomic.CompareAndSwapUint64(p, d, d-1) {
			return true
		}
	}
}

// Wait blocks until the count is positive and decrements it, like sem_wait.
// Unlike sem_wait it does not return on EINTR.
func (s *Semaphore) Wait() error {
	if s.TryWait() {
		return nil
	}
	p := s.data()
	d := atomic.AddUint64(p, 1<<semNwaitersShift)
	for {
		if uint32(d) == 0 {
			err := s.futex(futexWait, 0)
			if err != nil && err != unix.EAGAIN && err != unix.EINTR {
				atomic.AddUint64(p, ^uint64(1<<semNwaitersShift-1))
				return fmt.Errorf("semaphore wait: %w", err)
			}
			d = atomic.LoadUint64(p)
			continue
		}
		if atomic.CompareAndSwapUint64(p, d, d-1-1<<semNwaitersShift) {
			return nil
		}
		d = atomic.LoadUint64(p)
	}
}

func (s *Semaphore) futex(op, val int) error {
	op = (op | futexPrivateFlag) ^ int(atomic.LoadInt32(s.private()))
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(s.data())),
		uintptr(op), uintptr(val), 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (s *Semaphore) data() *uint64 {
	return (*uint64)(unsafe.Pointer(&s.mem[0]))
}

func (s *Semaphore) private() *int32 {
	return (*int32)(unsafe.Pointer(&s.mem[semPrivateOffset]))
}

func littleEndian() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}
