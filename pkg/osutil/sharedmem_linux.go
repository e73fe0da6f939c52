// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// In the case of Linux, we can just use the memfd_create syscall.
// The name is only visible in /proc/pid/fd and /proc/pid/maps.
func CreateSharedMemFile(name string) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to do memfd_create: %w", err)
	}
	return os.NewFile(uintptr(fd), fmt.Sprintf("/proc/self/fd/%d", fd)), nil
}

// CreateMemMappedFile creates a shared memory file with the requested size and maps it into memory.
func CreateMemMappedFile(name string, size int) (f *os.File, mem []byte, err error) {
	f, err = CreateSharedMemFile(name)
	if err != nil {
		return
	}
	if err = f.Truncate(int64(size)); err != nil {
		err = fmt.Errorf("failed to truncate shared mem file: %w", err)
		f.Close()
		return
	}
	mem, err = MapFile(f, size)
	if err != nil {
		f.Close()
	}
	return
}

// MapFile maps the first size bytes of an already sized file shared and writable.
func MapFile(f *os.File, size int) ([]byte, error) {
	mem, err := syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap shm file: %w", err)
	}
	return mem, nil
}

// CloseMemMappedFile destroys memory mapping created by CreateMemMappedFile.
func CloseMemMappedFile(f *os.File, mem []byte) error {
	err1 := syscall.Munmap(mem)
	err2 := f.Close()
	switch {
	case err1 != nil:
		return err1
	case err2 != nil:
		return err2
	default:
		return nil
	}
}
