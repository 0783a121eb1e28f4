package reflectext

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// ArrayShape returns the dimensions of a (possibly nested) fixed array type
// and its innermost element type. [2][3]int has dimensions [2 3] and element
// type int.
func ArrayShape(t reflect.Type) (dims []int, elem reflect.Type) {
	for t.Kind() == reflect.Array {
		dims = append(dims, t.Len())
		t = t.Elem()
	}
	return dims, t
}

// ArrayLen is the number of elements of an array of the given dimensions.
func ArrayLen(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// ArrayIndices converts the row-major linear index i into one index per
// dimension.
func ArrayIndices(dims []int, i int) []int {
	indices := make([]int, len(dims))
	for d := len(dims) - 1; d >= 0; d-- {
		indices[d] = i % dims[d]
		i /= dims[d]
	}
	return indices
}

// ArrayAt returns the element of the nested array v at indices.
func ArrayAt(v reflect.Value, indices []int) reflect.Value {
	for _, i := range indices {
		v = v.Index(i)
	}
	return v
}

// SortedMapKeys returns the keys of map v in a deterministic order: by value
// for basic kinds, by their formatted representation otherwise.
func SortedMapKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	slices.SortStableFunc(keys, compareValues)
	return keys
}

func compareValues(a, b reflect.Value) int {
	if a.Kind() == reflect.Interface {
		a = a.Elem()
	}
	if b.Kind() == reflect.Interface {
		b = b.Elem()
	}
	if a.IsValid() && b.IsValid() && a.Kind() == b.Kind() {
		switch a.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return cmp.Compare(a.Int(), b.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return cmp.Compare(a.Uint(), b.Uint())
		case reflect.Float32, reflect.Float64:
			return cmp.Compare(a.Float(), b.Float())
		case reflect.String:
			return cmp.Compare(a.String(), b.String())
		case reflect.Bool:
			return cmp.Compare(boolInt(a.Bool()), boolInt(b.Bool()))
		}
	}
	return cmp.Compare(format(a), format(b))
}

func format(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if !v.CanInterface() {
		return v.Type().String()
	}
	return fmt.Sprintf("%T:%v", v.Interface(), v.Interface())
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
