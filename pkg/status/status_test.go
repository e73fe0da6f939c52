// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package status

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestCreate(t *testing.T) {
	r, err := Create()
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int32(0), r.Value())
	assert.Equal(t, 0, r.Sem().Value())
	assert.Equal(t, 0, r.Sem().Waiters())
	// pshared sem_t carries FUTEX_SHARED in the private field.
	assert.Equal(t, uint32(futexPrivateFlag), binary.LittleEndian.Uint32(r.mem[semPrivateOffset:]))

	r.SetValue(-42)
	assert.Equal(t, int32(-42), r.Value())
	assert.Equal(t, uint32(math.MaxUint32-41), binary.LittleEndian.Uint32(r.mem[valueOffset:]))
}

func TestOpenSharesMemory(t *testing.T) {
	r, err := Create()
	require.NoError(t, err)
	defer r.Close()

	dup, err := unix.Dup(int(r.File().Fd()))
	require.NoError(t, err)
	child, err := Open(os.NewFile(uintptr(dup), "status"))
	require.NoError(t, err)
	defer child.Close()

	child.SetValue(7)
	assert.Equal(t, int32(7), r.Value())
	require.NoError(t, r.Release())
	assert.Equal(t, 1, child.Sem().Value())
	require.NoError(t, child.Wait())
	assert.Equal(t, 0, r.Sem().Value())
}

func TestOpenTooSmall(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "status")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(Size-1))
	_, err = Open(f)
	require.Error(t, err)
}

func TestSemaphoreCounting(t *testing.T) {
	r, err := Create()
	require.NoError(t, err)
	defer r.Close()
	sem := r.Sem()

	assert.False(t, sem.TryWait())
	for i := 0; i < 3; i++ {
		require.NoError(t, sem.Post())
	}
	assert.Equal(t, 3, sem.Value())
	assert.True(t, sem.TryWait())
	require.NoError(t, sem.Wait())
	assert.True(t, sem.TryWait())
	assert.False(t, sem.TryWait())
}

func TestSemaphoreOverflow(t *testing.T) {
	r, err := Create()
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Sem().Init(math.MaxInt32))
	err = r.Sem().Post()
	assert.True(t, errors.Is(err, unix.EOVERFLOW), "got %v", err)
	assert.Error(t, r.Sem().Init(math.MaxInt32+1))
}

func TestSemaphoreWakesWaiter(t *testing.T) {
	r, err := Create()
	require.NoError(t, err)
	defer r.Close()

	done := make(chan error)
	go func() {
		done <- r.Wait()
	}()
	for r.Sem().Waiters() == 0 {
		time.Sleep(time.Millisecond)
	}
	select {
	case err := <-done:
		t.Fatalf("wait returned before post: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, r.Release())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatalf("waiter was not woken")
	}
	assert.Equal(t, 0, r.Sem().Value())
	assert.Equal(t, 0, r.Sem().Waiters())
}

func TestNewSemaphoreShort(t *testing.T) {
	_, err := NewSemaphore(make([]byte, SemSize-1))
	require.Error(t, err)
}
