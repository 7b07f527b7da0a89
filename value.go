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

import "github.com/tads3/govm/internal/value"

// Value, ObjID, and friends live in internal/value so that internal
// packages lower in the dependency order (objtab, undo, grammar) can share
// them without importing this root package and creating an import cycle.
// This file re-exports the public surface.
type (
	Value      = value.Value
	Tag        = value.Tag
	PropID     = value.PropID
	ObjID      = value.ObjID
	WeakRef    = value.WeakRef
	NativeDesc = value.NativeDesc
)

const (
	TagNil        = value.TagNil
	TagTrue       = value.TagTrue
	TagInt        = value.TagInt
	TagObj        = value.TagObj
	TagProp       = value.TagProp
	TagEnum       = value.TagEnum
	TagSString    = value.TagSString
	TagList       = value.TagList
	TagCode       = value.TagCode
	TagFuncPtr    = value.TagFuncPtr
	TagNativeCode = value.TagNativeCode

	InvalidObjID = value.InvalidObjID
)

var (
	Nil  = value.Nil
	True = value.True
)

func Int(n int32) Value                 { return value.Int(n) }
func Obj(id ObjID) Value                { return value.Obj(id) }
func Prop(p PropID) Value               { return value.Prop(p) }
func Enum(e uint32) Value               { return value.Enum(e) }
func SString(poolOffset uint32) Value   { return value.SString(poolOffset) }
func List(poolOffset uint32) Value      { return value.List(poolOffset) }
func Code(poolOffset uint32) Value      { return value.Code(poolOffset) }
func FuncPtr(addr uint32) Value         { return value.FuncPtr(addr) }
func NativeCode(d *NativeDesc) Value    { return value.NativeCode(d) }
