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

// Package govm implements the core runtime of an interactive-fiction
// virtual machine: a tagged-value object system with a mark/sweep garbage
// collector, a savepoint/undo log, and a chart-style grammar matcher used by
// the VM's parser library.
//
// The bytecode dispatcher, saved-state file I/O beyond what this package
// needs for its own round-trip tests, and host-specific graphics are outside
// this package's scope; see the object table, value, and metaclass types
// exported here for the surface a dispatcher would embed against.
package govm
