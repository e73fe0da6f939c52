// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// execsrv-target is a stand-in for an emulator run under execsrv.
// It publishes a value in the status region, stops itself and continues after
// the harness resumes it, starting over when a restore is requested.
//
//	execsrv -p ./execsrv-target -- -value=1 -runs=1000
package main

import (
	"os"

	"github.com/tzfuzz/execsrv/pkg/target"
)

func main() {
	os.Exit(target.Main(os.Args[1:]))
}
