// Package codec is the registry of value codecs used to encode leaf values
// of object graphs.
//
// A [Registry] holds two independent tables keyed by exact Go type. Textual
// codecs convert values to and from strings, written as attributes of
// document elements. Binary codecs convert values to bytes, which the
// registry compresses before they are embedded as base64 blobs. There is no
// fallback between types: a value of type T is encoded by the codec
// registered for T or not at all.
//
// Registries are populated at initialization, by [Register], [RegisterText],
// [RegisterBinary] and codec modules, and are then used concurrently by any
// number of serializers.
package codec

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/stealthrocket/graphdoc/compress"
	"github.com/stealthrocket/graphdoc/types"
)

// TextCodec converts values of one type to and from strings.
type TextCodec struct {
	Encode func(reflect.Value) (string, error)
	Decode func(string) (reflect.Value, error)
}

// BinaryCodec converts values of one type to and from bytes. The bytes are
// compressed by the registry, codecs only see uncompressed data.
type BinaryCodec struct {
	Encode func(reflect.Value) ([]byte, error)
	Decode func([]byte) (reflect.Value, error)
}

// Entry is a unit of codec registration. At least one of Text and Binary
// must be set.
type Entry struct {
	Type   reflect.Type
	Text   *TextCodec
	Binary *BinaryCodec
}

// Text builds an entry registering a textual codec for T.
func Text[T any](encode func(T) (string, error), decode func(string) (T, error)) Entry {
	t := reflect.TypeFor[T]()
	return Entry{
		Type: t,
		Text: &TextCodec{
			Encode: func(v reflect.Value) (string, error) {
				return encode(valueOf[T](t, v))
			},
			Decode: func(s string) (reflect.Value, error) {
				x, err := decode(s)
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(&x).Elem(), nil
			},
		},
	}
}

// Binary builds an entry registering a binary codec for T.
func Binary[T any](encode func(T) ([]byte, error), decode func([]byte) (T, error)) Entry {
	t := reflect.TypeFor[T]()
	return Entry{
		Type: t,
		Binary: &BinaryCodec{
			Encode: func(v reflect.Value) ([]byte, error) {
				return encode(valueOf[T](t, v))
			},
			Decode: func(b []byte) (reflect.Value, error) {
				x, err := decode(b)
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(&x).Elem(), nil
			},
		},
	}
}

func valueOf[T any](t reflect.Type, v reflect.Value) T {
	if v.Type() != t {
		v = v.Convert(t)
	}
	return v.Interface().(T)
}

// Blob is the embedded form of a binary encoded value: the compressed
// payload and the length of the uncompressed data.
type Blob struct {
	Data   []byte
	Length int
}

// CodecNotFoundError is returned when no codec is registered for a type in
// the requested table.
type CodecNotFoundError struct {
	Type   reflect.Type
	Binary bool
}

func (e *CodecNotFoundError) Error() string {
	table := "textual"
	if e.Binary {
		table = "binary"
	}
	return fmt.Sprintf("no %s codec registered for type %s", table, e.Type)
}

// ErrInvalidEntry is returned when registering an entry without a type or
// without codecs.
var ErrInvalidEntry = errors.New("invalid codec entry")

// Option configures a Registry.
type Option func(*Registry)

// WithCompression sets the compression applied to binary encoded values.
// The default is LZ4.
func WithCompression(tag compress.Tag) Option {
	return func(r *Registry) { r.compression = tag }
}

// WithCatalog sets the type catalog used by the type value codec to resolve
// types by name. By default each registry has its own catalog.
func WithCatalog(c *types.Catalog) Option {
	return func(r *Registry) { r.catalog = c }
}

// Registry holds the textual and binary codec tables.
//
// A Registry is safe for concurrent use.
type Registry struct {
	text        *xsync.MapOf[reflect.Type, *TextCodec]
	binary      *xsync.MapOf[reflect.Type, *BinaryCodec]
	modules     *xsync.MapOf[string, Module]
	catalog     *types.Catalog
	compression compress.Tag
}

// NewRegistry returns a registry populated with the built-in codecs.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		text:        xsync.NewMapOf[reflect.Type, *TextCodec](),
		binary:      xsync.NewMapOf[reflect.Type, *BinaryCodec](),
		modules:     xsync.NewMapOf[string, Module](),
		compression: compress.LZ4,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = types.NewCatalog()
	}
	registerScalars(r)
	registerArrays(r)
	registerTypeValue(r)
	return r
}

// Catalog returns the type catalog of the registry.
func (r *Registry) Catalog() *types.Catalog {
	return r.catalog
}

// Register adds the codecs of entry, replacing existing codecs for the same
// type and table.
func (r *Registry) Register(e Entry) error {
	if e.Type == nil || (e.Text == nil && e.Binary == nil) {
		return ErrInvalidEntry
	}
	if e.Text != nil {
		if e.Text.Encode == nil || e.Text.Decode == nil {
			return fmt.Errorf("%w: incomplete textual codec for %s", ErrInvalidEntry, e.Type)
		}
		r.text.Store(e.Type, e.Text)
	}
	if e.Binary != nil {
		if e.Binary.Encode == nil || e.Binary.Decode == nil {
			return fmt.Errorf("%w: incomplete binary codec for %s", ErrInvalidEntry, e.Type)
		}
		r.binary.Store(e.Type, e.Binary)
	}
	r.catalog.Add(e.Type)
	return nil
}

func (r *Registry) mustRegister(e Entry) {
	if err := r.Register(e); err != nil {
		panic(err)
	}
}

// RegisterText registers a textual codec for T.
func RegisterText[T any](r *Registry, encode func(T) (string, error), decode func(string) (T, error)) error {
	return r.Register(Text(encode, decode))
}

// RegisterBinary registers a binary codec for T.
func RegisterBinary[T any](r *Registry, encode func(T) ([]byte, error), decode func([]byte) (T, error)) error {
	return r.Register(Binary(encode, decode))
}

// Has reports whether a codec is registered for t in the binary table when
// binary is set, or in the textual table otherwise.
func (r *Registry) Has(t reflect.Type, binary bool) bool {
	if binary {
		return r.HasBinary(t)
	}
	return r.HasText(t)
}

// HasText reports whether a textual codec is registered for t.
func (r *Registry) HasText(t reflect.Type) bool {
	_, ok := r.text.Load(t)
	return ok
}

// HasBinary reports whether a binary codec is registered for t.
func (r *Registry) HasBinary(t reflect.Type) bool {
	_, ok := r.binary.Load(t)
	return ok
}

// EncodeText encodes v with the textual codec of its type.
func (r *Registry) EncodeText(v reflect.Value) (string, error) {
	c, ok := r.text.Load(v.Type())
	if !ok {
		return "", &CodecNotFoundError{Type: v.Type()}
	}
	s, err := c.Encode(v)
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", v.Type(), err)
	}
	return s, nil
}

// DecodeText decodes a value of type t from s.
func (r *Registry) DecodeText(t reflect.Type, s string) (reflect.Value, error) {
	c, ok := r.text.Load(t)
	if !ok {
		return reflect.Value{}, &CodecNotFoundError{Type: t}
	}
	v, err := c.Decode(s)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("decoding %s from %q: %w", t, s, err)
	}
	return v, nil
}

// EncodeBinary encodes v with the binary codec of its type and compresses
// the result.
func (r *Registry) EncodeBinary(v reflect.Value) (Blob, error) {
	c, ok := r.binary.Load(v.Type())
	if !ok {
		return Blob{}, &CodecNotFoundError{Type: v.Type(), Binary: true}
	}
	b, err := c.Encode(v)
	if err != nil {
		return Blob{}, fmt.Errorf("encoding %s: %w", v.Type(), err)
	}
	data, err := compress.Compress(b, r.compression)
	if err != nil {
		return Blob{}, fmt.Errorf("compressing %s: %w", v.Type(), err)
	}
	return Blob{Data: data, Length: len(b)}, nil
}

// DecodeBinary decompresses blob and decodes a value of type t from it. A
// blob of length zero decodes to the zero value of t.
func (r *Registry) DecodeBinary(t reflect.Type, blob Blob) (reflect.Value, error) {
	c, ok := r.binary.Load(t)
	if !ok {
		return reflect.Value{}, &CodecNotFoundError{Type: t, Binary: true}
	}
	if blob.Length == 0 {
		return reflect.Zero(t), nil
	}
	b, err := compress.Decompress(blob.Data, blob.Length)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("decompressing %s: %w", t, err)
	}
	v, err := c.Decode(b)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("decoding %s: %w", t, err)
	}
	return v, nil
}
