// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tool

import (
	"strings"
)

// ListFlag is a comma-separated list flag value, e.g. "-deny=ptrace,kexec_load".
// The flag may be given several times, values accumulate.
type ListFlag []string

func (l *ListFlag) String() string {
	return strings.Join(*l, ",")
}

// Set appends comma-separated values, empty elements are skipped.
func (l *ListFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		*l = append(*l, v)
	}
	return nil
}
