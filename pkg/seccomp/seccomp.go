// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package seccomp builds seccomp filters for the fuzzing target.
package seccomp

import (
	"fmt"
	"sort"
	"syscall"

	libseccomp "github.com/elastic/go-seccomp-bpf"
	"github.com/elastic/go-seccomp-bpf/arch"
	"golang.org/x/net/bpf"
)

var info, errInfo = arch.GetInfo("")

// DenyList returns a filter that fails the named syscalls with EPERM
// and allows all others. The result can be loaded with the seccomp syscall.
func DenyList(names []string) (*syscall.SockFprog, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("empty syscall deny list")
	}
	if err := Validate(names); err != nil {
		return nil, err
	}
	policy := &libseccomp.Policy{
		DefaultAction: libseccomp.ActionAllow,
		Syscalls: []libseccomp.SyscallGroup{
			{
				Action: libseccomp.ActionErrno,
				Names:  names,
			},
		},
	}
	insts, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("failed to assemble seccomp policy: %w", err)
	}
	raw, err := bpf.Assemble(insts)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble seccomp program: %w", err)
	}
	return toSockFprog(raw), nil
}

// Validate checks that all names are syscalls of the current architecture.
func Validate(names []string) error {
	if errInfo != nil {
		return errInfo
	}
	var unknown []string
	for _, name := range names {
		if _, ok := info.SyscallNames[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) != 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown syscalls on %v: %q", info.Name, unknown)
	}
	return nil
}

// SyscallName converts syscall number to its name on the current architecture.
func SyscallName(nr int) (string, error) {
	if errInfo != nil {
		return "", errInfo
	}
	name, ok := info.SyscallNumbers[nr]
	if !ok {
		return "", fmt.Errorf("syscall no %d does not exist", nr)
	}
	return name, nil
}

func toSockFprog(raw []bpf.RawInstruction) *syscall.SockFprog {
	filter := make([]syscall.SockFilter, len(raw))
	for i, ins := range raw {
		filter[i] = syscall.SockFilter{
			Code: ins.Op,
			Jt:   ins.Jt,
			Jf:   ins.Jf,
			K:    ins.K,
		}
	}
	return &syscall.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
}
