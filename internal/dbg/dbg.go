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

// Package dbg includes debugging helpers shared by the VM core: gated
// tracing, assertions, and pretty-printing for things that are too slow or
// too noisy to always compute.
package dbg

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Enabled is true when tracing has been turned on via GOVM_DEBUG=1.
//
// Unlike the upstream library this was adapted from, this is a runtime
// variable rather than a build tag: the VM is normally embedded in a host
// binary that the student cannot always recompile with custom tags.
var Enabled = os.Getenv("GOVM_DEBUG") != ""

// Log prints tracing information to stderr, if Enabled.
//
// context is optional args for fmt.Sprintf that are printed before
// operation, useful for identifying which instance of a recurring
// operation produced a given line.
func Log(context []any, operation string, format string, args ...any) {
	if !Enabled {
		return
	}

	pc, file, line, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	name := fn.Name()
	name = name[strings.LastIndex(name, "/")+1:]
	file = filepath.Base(file)

	buf := new(strings.Builder)
	fmt.Fprintf(buf, "%s:%d [%s]", file, line, name)
	if len(context) >= 1 {
		fmt.Fprintf(buf, ", "+context[0].(string), context[1:]...) //nolint:errcheck
	}
	fmt.Fprintf(buf, " %s: ", operation)
	fmt.Fprintf(buf, format, args...)
	buf.WriteByte('\n')

	os.Stderr.WriteString(buf.String()) //nolint:errcheck
}

// Assert panics if cond is false. Unlike Log, this always runs: invariant
// violations in the object table or undo log are bugs, not noise.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Errorf("govm: internal assertion failed: "+format, args...))
	}
}

// Formatter is a fmt.Formatter implementation that just calls a function.
//
// Useful for deferring an expensive format operation until (and unless) it is
// actually printed, e.g. inside a Log call that may be a no-op.
type Formatter func(s fmt.State)

func (f Formatter) Format(s fmt.State, verb rune) {
	if verb != 'v' {
		fmt.Fprintf(s, "%%%c(%T)", verb, f)
		return
	}
	f(s)
}

// Fprintf is like fmt.Sprintf, but the printing is delayed until the
// returned value is formatted with %v.
func Fprintf(format string, args ...any) Formatter {
	return Formatter(func(s fmt.State) { fmt.Fprintf(s, format, args...) })
}
