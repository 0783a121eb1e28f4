package reflectext

import (
	"reflect"
	"unsafe"
)

// Addressable returns v if it is addressable, or an addressable copy of v
// otherwise. Values read out of maps and interfaces are not addressable.
func Addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}

// Field returns the field of struct value v at the index sequence. When
// exported is false the returned value gives unrestricted access to the
// field, unexported or not (no read-only flag). v must be addressable.
func Field(v reflect.Value, index []int, exported bool) reflect.Value {
	if exported {
		return v.FieldByIndex(index)
	}
	for _, i := range index {
		f := v.Type().Field(i)
		base := v.Addr().UnsafePointer()
		v = reflect.NewAt(f.Type, unsafe.Add(base, f.Offset)).Elem()
	}
	return v
}

// PointerKey returns the address held by the pointer value v.
func PointerKey(v reflect.Value) uintptr {
	return uintptr(v.UnsafePointer())
}
