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

package objtab

import (
	"errors"
	"fmt"
)

// ErrData is this package's local handle on spec §7's data-error category;
// the root govm package wraps it behind its own ErrData sentinel via
// errors.Is rather than this package importing the root (which would create
// an import cycle).
var ErrData = errors.New("objtab: data error")

func dataErrorf(op, format string, args ...any) error {
	return fmt.Errorf("objtab: %s: %w: %s", op, ErrData, fmt.Sprintf(format, args...))
}
