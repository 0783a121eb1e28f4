package reflectext

import (
	"reflect"
)

var (
	AnyType = reflect.TypeFor[any]()

	BoolType = reflect.TypeFor[bool]()

	IntType   = reflect.TypeFor[int]()
	Int8Type  = reflect.TypeFor[int8]()
	Int16Type = reflect.TypeFor[int16]()
	Int32Type = reflect.TypeFor[int32]()
	Int64Type = reflect.TypeFor[int64]()

	UintType   = reflect.TypeFor[uint]()
	Uint8Type  = reflect.TypeFor[uint8]()
	Uint16Type = reflect.TypeFor[uint16]()
	Uint32Type = reflect.TypeFor[uint32]()
	Uint64Type = reflect.TypeFor[uint64]()

	Float32Type = reflect.TypeFor[float32]()
	Float64Type = reflect.TypeFor[float64]()

	Complex64Type  = reflect.TypeFor[complex64]()
	Complex128Type = reflect.TypeFor[complex128]()

	ByteType   = reflect.TypeFor[byte]()
	StringType = reflect.TypeFor[string]()

	UintptrType = reflect.TypeFor[uintptr]()

	ErrorType = reflect.TypeFor[error]()

	// ReflectTypeType is the dynamic type of the values returned by
	// reflect.TypeOf, which is what a reflect.Type member holds at runtime.
	ReflectTypeType = reflect.TypeOf(reflect.TypeOf(0))
)

var basicTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:       BoolType,
	reflect.Int:        IntType,
	reflect.Int8:       Int8Type,
	reflect.Int16:      Int16Type,
	reflect.Int32:      Int32Type,
	reflect.Int64:      Int64Type,
	reflect.Uint:       UintType,
	reflect.Uint8:      Uint8Type,
	reflect.Uint16:     Uint16Type,
	reflect.Uint32:     Uint32Type,
	reflect.Uint64:     Uint64Type,
	reflect.Uintptr:    UintptrType,
	reflect.Float32:    Float32Type,
	reflect.Float64:    Float64Type,
	reflect.Complex64:  Complex64Type,
	reflect.Complex128: Complex128Type,
	reflect.String:     StringType,
}

// IsBasic reports whether t has a basic kind: booleans, numbers and strings.
func IsBasic(t reflect.Type) bool {
	_, ok := basicTypes[t.Kind()]
	return ok
}

// Underlying returns the predeclared type with the same kind as the basic
// type t; for example int32 for a `type Color int32`. It returns nil when t
// is not basic.
func Underlying(t reflect.Type) reflect.Type {
	return basicTypes[t.Kind()]
}

// Nilable reports whether the zero value of t is nil.
func Nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}
