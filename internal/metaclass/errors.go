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

package metaclass

import (
	"errors"
	"fmt"
)

// ErrConfig is this package's handle on spec §7's configuration-error
// category: an image or save file names a metaclass the host never
// registered a Factory for.
var ErrConfig = errors.New("metaclass: configuration error")

// ErrType is this package's handle on spec §7's type-error category: a
// method call named a function index the target metaclass doesn't define.
var ErrType = errors.New("metaclass: type error")

func unknownMetaclassErrorf(name string) error {
	return fmt.Errorf("metaclass: %w: no factory registered for %q", ErrConfig, name)
}

func unknownMethodErrorf(name string, funcIdx uint16) error {
	return fmt.Errorf("metaclass: %w: %q has no method at function index %d", ErrType, name, funcIdx)
}
