package types

import (
	"reflect"

	"github.com/stealthrocket/graphdoc/internal/reflectext"
)

// Kind is the structural classification of a type, which decides how
// values of the type are traversed.
type Kind uint8

const (
	// Unknown types have no usable representation; typically a nil
	// interface member. They are written as null.
	Unknown Kind = iota
	// Primitive types have a registered codec and a basic Go kind.
	Primitive
	// Struct types are structs and pointers to structs. They are recursed
	// into unless a codec is registered for them.
	Struct
	// Enum types are named basic types without a codec of their own. They
	// are encoded through their underlying basic type.
	Enum
	// List types are slices.
	List
	// Map types are maps.
	Map
	// Array types are fixed size arrays. Nested arrays form a single multi
	// dimensional array.
	Array
	// Pointer types are pointers to values encoded by a codec, or to enums.
	// They are written as the encoded value they point to, or as null.
	Pointer
)

func (k Kind) String() string {
	switch k {
	case Primitive:
		return "primitive"
	case Struct:
		return "struct"
	case Enum:
		return "enum"
	case List:
		return "list"
	case Map:
		return "map"
	case Array:
		return "array"
	case Pointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// Codecs is the view of a codec registry needed to classify types.
type Codecs interface {
	// Has reports whether a codec is registered for t, in the binary table
	// when preferBinary is set and in the textual table otherwise.
	Has(t reflect.Type, preferBinary bool) bool
}

// KindOf classifies t.
func KindOf(t reflect.Type, codecs Codecs) Kind {
	if t == nil {
		return Unknown
	}
	switch t.Kind() {
	case reflect.Struct:
		return Struct
	case reflect.Pointer:
		if hasAny(codecs, t) {
			return Struct
		}
		if isLeaf(t.Elem(), codecs) {
			return Pointer
		}
		if t.Elem().Kind() == reflect.Struct {
			return Struct
		}
		return Unknown
	case reflect.Slice:
		return List
	case reflect.Map:
		return Map
	case reflect.Array:
		return Array
	}
	if !reflectext.IsBasic(t) {
		return Unknown
	}
	if hasAny(codecs, t) {
		return Primitive
	}
	if reflectext.Underlying(t) != t {
		return Enum
	}
	return Unknown
}

// isLeaf reports whether values of t are written as a single encoded value
// whatever the member holding them: t has a textual codec or is an enum.
func isLeaf(t reflect.Type, codecs Codecs) bool {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return false
	}
	if codecs.Has(t, false) {
		return true
	}
	return KindOf(t, codecs) == Enum
}

// Elem returns the type a value of the Pointer type t is encoded as: the
// type t points to, or its underlying type for enums.
func Elem(t reflect.Type, codecs Codecs) reflect.Type {
	if KindOf(t.Elem(), codecs) == Enum {
		return reflectext.Underlying(t.Elem())
	}
	return t.Elem()
}

func hasAny(codecs Codecs, t reflect.Type) bool {
	return codecs.Has(t, false) || codecs.Has(t, true)
}

// HasCodec reports whether a value of type t is encoded by a codec rather
// than by recursion, for a member that may prefer binary codecs.
func HasCodec(codecs Codecs, t reflect.Type, preferBinary bool) bool {
	return (preferBinary && codecs.Has(t, true)) || codecs.Has(t, false)
}

// UseBinary reports whether a member preferring binary codecs actually gets
// one for type t. Members fall back to the textual codec when no binary
// codec is registered.
func UseBinary(codecs Codecs, t reflect.Type, preferBinary bool) bool {
	return preferBinary && codecs.Has(t, true)
}
