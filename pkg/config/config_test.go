// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	type Nested struct {
		Aaa int    `yaml:"aaa"`
		Bbb string `yaml:"bbb"`
	}
	type Config struct {
		Foo int           `yaml:"foo"`
		Bar string        `yaml:"bar"`
		Qux []string      `yaml:"qux"`
		Box Nested        `yaml:"box"`
		Boq *Nested       `yaml:"boq"`
		D   time.Duration `yaml:"d"`
	}

	tests := []struct {
		input  string
		output Config
		err    string
	}{
		{
			`foo: 42`,
			Config{Foo: 42},
			"",
		},
		{
			"# comment\nbar: baz\nfoo: 42\n",
			Config{Foo: 42, Bar: "baz"},
			"",
		},
		{
			``,
			Config{},
			"",
		},
		{
			`foobar: 42`,
			Config{},
			"field foobar not found",
		},
		{
			"box:\n  aaa: 12\n  ccc: bbb\n",
			Config{},
			"field ccc not found",
		},
		{
			"boq:\n  aaa: 12\n  bbb: bbb\n",
			Config{Boq: &Nested{Aaa: 12, Bbb: "bbb"}},
			"",
		},
		{
			`qux: [aaa, bbb]`,
			Config{Qux: []string{"aaa", "bbb"}},
			"",
		},
		{
			`d: 5s`,
			Config{D: 5 * time.Second},
			"",
		},
		{
			`foo: [1, 2]`,
			Config{},
			"failed to parse config file",
		},
	}
	for i, test := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			var cfg Config
			err := LoadData([]byte(test.input), &cfg)
			if test.err != "" {
				assert.ErrorContains(t, err, test.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.output, cfg)
		})
	}
}

func TestLoadBadType(t *testing.T) {
	want := "config type is not pointer to struct"
	if err := LoadData([]byte("{}"), 1); err == nil || err.Error() != want {
		t.Fatalf("got '%v', want '%v'", err, want)
	}
	i := 0
	if err := LoadData([]byte("{}"), &i); err == nil || err.Error() != want {
		t.Fatalf("got '%v', want '%v'", err, want)
	}
}

func TestLoadFile(t *testing.T) {
	type Config struct {
		Target string   `yaml:"target"`
		Args   []string `yaml:"args"`
	}
	assert.EqualError(t, LoadFile("", &Config{}), "no config file specified")

	file := filepath.Join(t.TempDir(), "cfg.yml")
	want := Config{Target: "/usr/bin/qemu-system-aarch64", Args: []string{"-nographic", "-m", "1024"}}
	require.NoError(t, SaveFile(file, want))
	var got Config
	require.NoError(t, LoadFile(file, &got))
	assert.Equal(t, want, got)

	assert.ErrorContains(t, LoadFile(filepath.Join(t.TempDir(), "missing.yml"), &got), "failed to read config file")
}
