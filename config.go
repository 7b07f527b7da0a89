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

package govm

import (
	"fmt"
	"os"

	"github.com/tiendc/go-deepcopy"
	"gopkg.in/yaml.v3"
)

// Config carries every host-tunable named in the spec, loaded once at
// startup rather than threaded through individual calls.
type Config struct {
	// ObjectTablePageSize is the object table's slots-per-page (spec §3);
	// must be a power of two.
	ObjectTablePageSize uint32 `yaml:"object_table_page_size"`

	// GCAllocThreshold and GCByteThreshold are the allocation-count and
	// cumulative-byte thresholds that trigger an automatic full GC pass
	// (spec §4.1).
	GCAllocThreshold uint64 `yaml:"gc_alloc_threshold"`
	GCByteThreshold  uint64 `yaml:"gc_byte_threshold"`

	// UndoLogCapacity is the undo log's bounded record capacity, N in
	// spec §4.2.
	UndoLogCapacity int `yaml:"undo_log_capacity"`

	// MaxSavepoints is the undo log's savepoint cap, M in spec §4.2.
	MaxSavepoints int `yaml:"max_savepoints"`

	// RegisterPoolSize is the configured size of the temporary numeric
	// register pool described in spec §5. The pool behind AcquireRegister
	// does not read it and is not bounded by it.
	RegisterPoolSize int `yaml:"register_pool_size"`
}

// DefaultConfig returns the literal defaults named in spec §4.
func DefaultConfig() Config {
	return Config{
		ObjectTablePageSize: 4096,
		GCAllocThreshold:    50000,
		GCByteThreshold:     16 << 20,
		UndoLogCapacity:     10000,
		MaxSavepoints:       256,
		RegisterPoolSize:    64,
	}
}

// LoadConfig reads a YAML config file, starting from DefaultConfig and
// overriding whichever fields the file sets.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configErrorf("load_config", "read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, configErrorf("load_config", "parse %s: %v", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ObjectTablePageSize == 0 || c.ObjectTablePageSize&(c.ObjectTablePageSize-1) != 0 {
		return configErrorf("validate_config", "object_table_page_size must be a power of two, got %d", c.ObjectTablePageSize)
	}
	if c.UndoLogCapacity <= 0 {
		return configErrorf("validate_config", "undo_log_capacity must be positive, got %d", c.UndoLogCapacity)
	}
	if c.MaxSavepoints <= 0 {
		return configErrorf("validate_config", "max_savepoints must be positive, got %d", c.MaxSavepoints)
	}
	return nil
}

// Clone returns an independent deep copy of c, so a host can spin up
// several Vm instances from one base config with small per-instance
// overrides without them sharing any mutable state.
func (c Config) Clone() (Config, error) {
	var out Config
	if err := deepcopy.Copy(&out, &c); err != nil {
		return Config{}, fmt.Errorf("govm: clone config: %w", err)
	}
	return out, nil
}
