// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func init() {
	EnableLogCaching(4, 20)
}

func TestCaching(t *testing.T) {
	tests := []struct{ str, want string }{
		{"", ""},
		{"a", "a\n"},
		{"bb", "a\nbb\n"},
		{"ccc", "a\nbb\nccc\n"},
		{"dddd", "a\nbb\nccc\ndddd\n"},
		{"eeeee", "bb\nccc\ndddd\neeeee\n"},
		{"ffffff", "ccc\ndddd\neeeee\nffffff\n"},
		{"ggggggg", "eeeee\nffffff\nggggggg\n"},
		{"hhhhhhhh", "ggggggg\nhhhhhhhh\n"},
		{"jjjjjjjjjjjjjjjjjjjjjjjjj", "jjjjjjjjjjjjjjjjjjjjjjjjj\n"},
	}
	prependTime = false
	for _, test := range tests {
		Logf(1, "%v", test.str)
		out := CachedLogOutput()
		if out != test.want {
			t.Fatalf("wrote: %v\nwant: %v\ngot: %v", test.str, test.want, out)
		}
	}
}

func TestVerbosity(t *testing.T) {
	buf := new(bytes.Buffer)
	SetOutput(buf)
	defer SetOutput(os.Stderr)
	SetVerbosity(1)
	defer SetVerbosity(0)

	Logf(1, "visible %v", 1)
	Logf(2, "hidden %v", 2)
	if !strings.Contains(buf.String(), "visible 1") {
		t.Fatalf("missing level 1 message: %q", buf.String())
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("level 2 message printed: %q", buf.String())
	}
	if !V(1) || V(2) {
		t.Fatalf("wrong V() results")
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "srv.log")
	if err := os.WriteFile(path, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	Logf(0, "appended")
	SetOutput(os.Stderr)
	f.Close()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "old\n") || !strings.Contains(string(data), "appended") {
		t.Fatalf("log file was not appended to: %q", data)
	}

	if _, err := OpenFile(filepath.Join(t.TempDir(), "no", "such", "dir", "srv.log")); err == nil {
		t.Fatalf("opened log file in a missing dir")
	}
}
