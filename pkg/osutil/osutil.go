// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"fmt"
	"os"
)

// IsExist returns true if the file name exists.
func IsExist(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// IsExecutable checks that name is a regular file with at least one exec bit set.
func IsExecutable(name string) error {
	st, err := os.Stat(name)
	if err != nil {
		return fmt.Errorf("%v does not exist", name)
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%v is not a regular file", name)
	}
	if st.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("%v is not executable", name)
	}
	return nil
}
