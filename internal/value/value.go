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

package value

import "fmt"

// Tag identifies the kind of payload a Value carries.
type Tag uint8

const (
	TagNil Tag = iota
	TagTrue
	TagInt
	TagObj
	TagProp
	TagEnum
	TagSString
	TagList
	TagCode
	TagFuncPtr
	TagNativeCode
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagTrue:
		return "true"
	case TagInt:
		return "int"
	case TagObj:
		return "obj"
	case TagProp:
		return "prop"
	case TagEnum:
		return "enum"
	case TagSString:
		return "sstring"
	case TagList:
		return "list"
	case TagCode:
		return "code"
	case TagFuncPtr:
		return "funcptr"
	case TagNativeCode:
		return "nativecode"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// PropID is a property identifier: a 16-bit namespace of method/field slots
// shared by every object that implements a given property.
type PropID uint16

// NativeDesc describes the argument-count contract of a native (built-in)
// method, addressed by a Value tagged NativeCode.
type NativeDesc struct {
	MinArgs, MaxArgs int
	// Addr is an opaque handle to the native implementation; the bytecode
	// dispatcher that is out of scope for this package is the only thing
	// that interprets it.
	Addr uintptr
}

// Value is the universal tagged scalar threaded through the VM: every
// property value, every stack slot, every dictionary association is a
// Value. See spec §3 "Value (universal tagged scalar)".
//
// The zero Value is TagNil.
type Value struct {
	tag Tag
	// payload packs every non-pointer payload kind (Int, Obj, Prop, Enum,
	// the constant-pool offsets for SString/List/Code, FuncPtr) into one
	// 64-bit word, the way the original VM packs them into a tagged union.
	payload uint64
	// native is only set when tag == TagNativeCode; payload is unused then.
	// Keeping it out of the packed word avoids forcing every Value through
	// an interface or a pointer indirection for the overwhelmingly common
	// scalar tags.
	native *NativeDesc
}

// Nil is the canonical nil Value.
var Nil = Value{tag: TagNil}

// True is the canonical true Value.
var True = Value{tag: TagTrue}

// Int constructs a Value holding a signed 32-bit integer.
func Int(n int32) Value { return Value{tag: TagInt, payload: uint64(uint32(n))} }

// Obj constructs a Value holding an object id. ObjID zero means "invalid".
func Obj(id ObjID) Value { return Value{tag: TagObj, payload: uint64(id)} }

// Prop constructs a Value holding a property id.
func Prop(p PropID) Value { return Value{tag: TagProp, payload: uint64(p)} }

// Enum constructs a Value holding an enum tag.
func Enum(e uint32) Value { return Value{tag: TagEnum, payload: uint64(e)} }

// SString constructs a Value referring to a string in the constant pool.
func SString(poolOffset uint32) Value { return Value{tag: TagSString, payload: uint64(poolOffset)} }

// List constructs a Value referring to a list in the constant pool.
func List(poolOffset uint32) Value { return Value{tag: TagList, payload: uint64(poolOffset)} }

// Code constructs a Value referring to code data in the constant pool.
func Code(poolOffset uint32) Value { return Value{tag: TagCode, payload: uint64(poolOffset)} }

// FuncPtr constructs a Value holding a bytecode address.
func FuncPtr(addr uint32) Value { return Value{tag: TagFuncPtr, payload: uint64(addr)} }

// NativeCode constructs a Value holding a native method descriptor.
func NativeCode(d *NativeDesc) Value { return Value{tag: TagNativeCode, native: d} }

// Tag returns this value's tag.
func (v Value) Tag() Tag { return v.tag }

// IsNil reports whether v is TagNil.
func (v Value) IsNil() bool { return v.tag == TagNil }

// IsTrue reports whether v is TagTrue.
func (v Value) IsTrue() bool { return v.tag == TagTrue }

// AsInt returns v's integer payload, and whether v was tagged TagInt.
func (v Value) AsInt() (int32, bool) {
	if v.tag != TagInt {
		return 0, false
	}
	return int32(uint32(v.payload)), true
}

// AsObj returns v's object id, and whether v was tagged TagObj.
func (v Value) AsObj() (ObjID, bool) {
	if v.tag != TagObj {
		return 0, false
	}
	return ObjID(v.payload), true
}

// AsProp returns v's property id, and whether v was tagged TagProp.
func (v Value) AsProp() (PropID, bool) {
	if v.tag != TagProp {
		return 0, false
	}
	return PropID(v.payload), true
}

// AsEnum returns v's enum payload, and whether v was tagged TagEnum.
func (v Value) AsEnum() (uint32, bool) {
	if v.tag != TagEnum {
		return 0, false
	}
	return uint32(v.payload), true
}

// PoolOffset returns v's constant-pool offset, and whether v was tagged
// one of SString, List, or Code.
func (v Value) PoolOffset() (uint32, bool) {
	switch v.tag {
	case TagSString, TagList, TagCode:
		return uint32(v.payload), true
	default:
		return 0, false
	}
}

// AsNativeDesc returns v's native-method descriptor, and whether v was
// tagged TagNativeCode.
func (v Value) AsNativeDesc() (*NativeDesc, bool) {
	if v.tag != TagNativeCode {
		return nil, false
	}
	return v.native, true
}

// Equal compares two values by tag then payload, per spec §3: "Values
// compare and hash by tag then by payload; object values compare equal by
// id unless the target object overrides equality."
//
// eq, when non-nil, is consulted for TagObj/TagObj comparisons to allow
// objects (strings, BigNumbers) to override equality; when nil, object
// values compare by id only.
func (v Value) Equal(w Value, eq func(a, b ObjID) bool) bool {
	if v.tag != w.tag {
		return false
	}
	switch v.tag {
	case TagNil, TagTrue:
		return true
	case TagNativeCode:
		return v.native == w.native
	case TagObj:
		if eq != nil {
			return eq(ObjID(v.payload), ObjID(w.payload))
		}
		return v.payload == w.payload
	default:
		return v.payload == w.payload
	}
}

// Hash returns a hash consistent with Equal when eq is nil (i.e. for values
// that don't override object equality).
func (v Value) Hash() uint64 {
	return uint64(v.tag)<<56 ^ v.payload
}

func (v Value) String() string {
	switch v.tag {
	case TagNil:
		return "nil"
	case TagTrue:
		return "true"
	case TagInt:
		n, _ := v.AsInt()
		return fmt.Sprintf("%d", n)
	case TagObj:
		id, _ := v.AsObj()
		return fmt.Sprintf("obj#%d", id)
	case TagProp:
		p, _ := v.AsProp()
		return fmt.Sprintf("prop#%d", p)
	case TagEnum:
		e, _ := v.AsEnum()
		return fmt.Sprintf("enum(%d)", e)
	case TagSString, TagList, TagCode:
		off, _ := v.PoolOffset()
		return fmt.Sprintf("%v@%d", v.tag, off)
	case TagFuncPtr:
		return fmt.Sprintf("func@%d", uint32(v.payload))
	case TagNativeCode:
		return fmt.Sprintf("native(%d..%d)", v.native.MinArgs, v.native.MaxArgs)
	default:
		return "<invalid value>"
	}
}
