// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package tool contains various helper utilitites useful for implementation of command line tools.
package tool

import (
	"flag"
	"fmt"
	"os"
)

var (
	flagCPUProfile = flag.String("cpuprofile", "", "write CPU profile to this file")
	flagMEMProfile = flag.String("memprofile", "", "write memory profile to this file on exit")
)

// Init parses command line flags and starts profiling.
// The returned function stops profiling, call it before os.Exit.
func Init() func() {
	flag.Parse()
	prof, err := startProfiles(*flagCPUProfile, *flagMEMProfile)
	if err != nil {
		Fail(err)
	}
	return func() {
		if err := prof.stop(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

func Failf(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

func Fail(err error) {
	Failf("%v", err)
}
