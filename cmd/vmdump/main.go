// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// vmdump is a read-only diagnostic tool: it loads an image file or a
// saved-state file and prints a summary of what it contains. It never
// constructs a Vm or resolves metaclass factories, so it can inspect a file
// produced by a host whose metaclasses it doesn't link against.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/tads3/govm/internal/flag2"
	"github.com/tads3/govm/internal/imgfmt"
	"github.com/tads3/govm/internal/savefmt"
)

// colorMode is a tri-state flag.Value: auto defers to whether stdout is a
// terminal, always/never override it. Modeled on the bool/string flag.Value
// implementations the standard flag package itself provides, since nothing
// in the wider dependency set defines a tri-state flag type.
type colorMode int

const (
	colorAuto colorMode = iota
	colorAlways
	colorNever
)

func (m *colorMode) String() string {
	switch *m {
	case colorAlways:
		return "always"
	case colorNever:
		return "never"
	default:
		return "auto"
	}
}

func (m *colorMode) Set(s string) error {
	switch s {
	case "auto":
		*m = colorAuto
	case "always":
		*m = colorAlways
	case "never":
		*m = colorNever
	default:
		return fmt.Errorf("invalid -color value %q (want auto, always, or never)", s)
	}
	return nil
}

// Get satisfies flag.Getter, which flag2.Lookup requires.
func (m *colorMode) Get() any { return *m }

var (
	colorFlag colorMode
	saveFile  = flag.String("save", "", "dump a saved-state file instead of an image")
	imageFile = flag.String("image", "", "image file to dump")
)

func init() {
	flag.Var(&colorFlag, "color", "colorize output: auto, always, or never")
}

const (
	bold  = "\x1b[1m"
	dim   = "\x1b[2m"
	reset = "\x1b[0m"
)

// styler returns bold/dim/reset escapes, or empty strings when color is
// disabled.
func styler() (b, d, r string) {
	enabled := false
	switch flag2.Lookup[colorMode]("color") {
	case colorAlways:
		enabled = true
	case colorNever:
		enabled = false
	default:
		enabled = term.IsTerminal(int(os.Stdout.Fd()))
	}
	if !enabled {
		return "", "", ""
	}
	return bold, dim, reset
}

func dumpImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, err := imgfmt.Load(context.Background(), f)
	if err != nil {
		return fmt.Errorf("vmdump: %w", err)
	}

	b, d, r := styler()
	fmt.Printf("%simage%s %s%s%s\n", b, r, d, path, r)
	fmt.Printf("  objects:          %d\n", len(img.Objects))
	byMetaclass := map[string]int{}
	for _, obj := range img.Objects {
		byMetaclass[obj.MetaclassName]++
	}
	for name, count := range byMetaclass {
		fmt.Printf("    %s%-24s%s %d\n", d, name, r, count)
	}
	fmt.Printf("  grammar productions: %d\n", len(img.Productions))
	fmt.Printf("  dictionary entries:  %d\n", len(img.Dictionary))
	if img.Comparator != nil {
		fmt.Printf("  string comparator:   present\n")
	}
	return nil
}

func dumpSave(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	header, records, err := savefmt.Read(data)
	if err != nil {
		return fmt.Errorf("vmdump: %w", err)
	}

	b, d, r := styler()
	fmt.Printf("%ssaved state%s %s%s%s\n", b, r, d, path, r)
	fmt.Printf("  produced by vm: %s\n", header.ProducedBy)
	fmt.Printf("  format version: %d\n", header.Version)
	fmt.Printf("  records:        %d\n", len(records))
	byMetaclass := map[string]int{}
	for _, rec := range records {
		byMetaclass[rec.MetaclassName]++
	}
	for name, count := range byMetaclass {
		fmt.Printf("    %s%-24s%s %d\n", d, name, r, count)
	}
	return nil
}

func run() error {
	flag.Parse()

	switch {
	case *saveFile != "":
		return dumpSave(*saveFile)
	case *imageFile != "":
		return dumpImage(*imageFile)
	default:
		return fmt.Errorf("vmdump: must pass -image or -save")
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
