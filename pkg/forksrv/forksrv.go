// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package forksrv implements the AFL fork server side of the controller protocol.
//
// After the harness writes a 4-byte options word, the protocol repeats
// {read run request, write pid, write result}, all as native-endian 32-bit words.
package forksrv

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Descriptor numbers fixed by the controller and by target conventions.
const (
	ControlFd      = 198 // run requests from the controller
	StatusFd       = 199 // options, pids and results to the controller
	StatusRegionFd = 399 // status region memfd in the child
	RestoreFd      = 400 // restore eventfd in the child
)

// Options is the options word sent on startup: no optional features.
const Options uint32 = 0

type Op string

const (
	OpHello       Op = "write options"
	OpReadRequest Op = "read request"
	OpWritePid    Op = "write pid"
	OpWriteResult Op = "write result"
)

// Error is returned for any failed exchange with the controller.
type Error struct {
	Op  Op
	Err error
}

func (err *Error) Error() string {
	return fmt.Sprintf("fork server %v: %v", err.Op, err.Err)
}

func (err *Error) Unwrap() error {
	return err.Err
}

type Conn struct {
	r io.Reader
	w io.Writer
}

// Open uses the well-known descriptors inherited from the controller.
// It does not fail if they are not open; Hello does.
func Open() *Conn {
	return NewConn(os.NewFile(ControlFd, "forksrv-control"), os.NewFile(StatusFd, "forksrv-status"))
}

func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{r: r, w: w}
}

// Hello sends the options word. An error means there is no controller.
func (c *Conn) Hello() error {
	return c.write(OpHello, Options)
}

// ReadRequest blocks until the controller asks for the next run.
// The returned word is what the controller sends, non-zero if it killed
// the previous child on timeout.
func (c *Conn) ReadRequest() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.r, buf[:]); err != nil {
		return 0, &Error{Op: OpReadRequest, Err: err}
	}
	return binary.NativeEndian.Uint32(buf[:]), nil
}

func (c *Conn) WritePid(pid int) error {
	return c.write(OpWritePid, uint32(pid))
}

// WriteResult sends either the status region value or the raw wait status.
func (c *Conn) WriteResult(v uint32) error {
	return c.write(OpWriteResult, v)
}

func (c *Conn) write(op Op, v uint32) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], v)
	n, err := c.w.Write(buf[:])
	if err == nil && n != len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	return nil
}
