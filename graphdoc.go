// Package graphdoc serializes graphs of Go values to self-describing XML
// documents, and reconstructs them.
//
// The structure of values is discovered by reflection through a
// [meta.Provider]; no per-type code is needed. Leaf values are encoded by
// the codecs of a [codec.Registry]. Pointers to types with shared-object
// semantics ([meta.Shared]) are written once to the shared pool of the
// document and referenced by identifier, so that graphs sharing objects,
// or holding cycles through them, are reconstructed with the same shape.
//
//	s := graphdoc.New()
//	doc, err := s.Serialize(&scene)
//	...
//	scene, err := graphdoc.Deserialize[Scene](s, doc)
//
// Documents name types with their Go identity. A process reading documents
// written by another one must know the types they contain: register them
// with [Register], or with the code produced by the gen command of
// cmd/graphdoc.
package graphdoc

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/stealthrocket/graphdoc/codec"
	"github.com/stealthrocket/graphdoc/document"
	"github.com/stealthrocket/graphdoc/meta"
)

const (
	// DefaultMaxDepth is the default limit on the nesting of object graphs.
	DefaultMaxDepth = 512

	comment = "Created by graphdoc"
)

// Option configures a Serializer.
type Option func(*Serializer)

// WithLogger sets the logger of the serializer. The default discards logs.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Serializer) { s.logger = logger }
}

// WithCodecs sets the codec registry used to encode leaf values.
func WithCodecs(r *codec.Registry) Option {
	return func(s *Serializer) { s.codecs = r }
}

// WithMembers sets the metadata provider describing the members of types.
func WithMembers(p meta.Provider) Option {
	return func(s *Serializer) { s.members = p }
}

// WithMaxDepth limits the nesting of object graphs. Zero or negative values
// remove the limit.
func WithMaxDepth(n int) Option {
	return func(s *Serializer) { s.maxDepth = n }
}

// WithIndent sets the number of spaces per level used when documents are
// written out. Negative values disable indentation.
func WithIndent(n int) Option {
	return func(s *Serializer) { s.indent = n }
}

// Serializer writes and reads object graph documents. It holds no state
// specific to a document and is safe for concurrent use.
type Serializer struct {
	logger   *zap.Logger
	codecs   *codec.Registry
	members  meta.Provider
	maxDepth int
	indent   int
}

// New returns a serializer configured with opts. Without options, it uses a
// fresh codec registry with the built-in codecs and reads struct tags.
func New(opts ...Option) *Serializer {
	s := &Serializer{
		maxDepth: DefaultMaxDepth,
		indent:   2,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.codecs == nil {
		s.codecs = codec.NewRegistry()
	}
	if s.members == nil {
		s.members = meta.NewTagProvider()
	}
	return s
}

// Codecs returns the codec registry of the serializer.
func (s *Serializer) Codecs() *codec.Registry { return s.codecs }

// Members returns the metadata provider of the serializer.
func (s *Serializer) Members() meta.Provider { return s.members }

// Register makes T, and the types reachable from its members, known to the
// serializer so that documents containing them can be read. Types held by
// interface members must be registered separately.
func Register[T any](s *Serializer) {
	s.codecs.Catalog().AddGraph(reflect.TypeFor[T](), func(t reflect.Type) []reflect.Type {
		members := s.members.Members(t)
		out := make([]reflect.Type, len(members))
		for i, m := range members {
			out[i] = m.Type
		}
		return out
	})
}

// RegisterCodecModule registers the codecs of m.
func (s *Serializer) RegisterCodecModule(m codec.Module) error {
	return s.codecs.RegisterModule(m)
}

// LoadCodecModule loads the codec module plugin at path.
func (s *Serializer) LoadCodecModule(path string) error {
	return s.codecs.LoadModule(path)
}

// Serialize writes the object graph rooted at x, which must be a struct or
// a non-nil pointer to one.
func (s *Serializer) Serialize(x any) (doc *document.Document, err error) {
	root, err := rootValue(x)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			s.logger.Error("serializing object graph",
				zap.Stringer("type", root.Type()),
				zap.Error(e))
			doc, err = nil, e
		}
	}()
	return newWriter(s).write(root), nil
}

// Marshal returns the XML representation of the document of x.
func (s *Serializer) Marshal(x any) ([]byte, error) {
	doc, err := s.Serialize(x)
	if err != nil {
		return nil, err
	}
	return doc.Bytes(s.indent)
}

// SerializeFile writes the document of x to the file at path.
func (s *Serializer) SerializeFile(x any, path string) error {
	doc, err := s.Serialize(x)
	if err != nil {
		return err
	}
	if err := doc.WriteFile(path, s.indent); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Deserialize reads a value of type T from doc. T is a struct type or a
// pointer to one.
func Deserialize[T any](s *Serializer, doc *document.Document) (T, error) {
	var x T
	_, err := s.DeserializeInto(doc, &x)
	return x, err
}

// DeserializeInto reads doc into the value pointed to by target, which must
// be a pointer to a struct or to a pointer to a struct. Members of the
// target absent from the document keep their value.
//
// The target is only modified when reading succeeds. When the document
// holds another type, ResultWrongType is returned with a *WrongTypeError.
func (s *Serializer) DeserializeInto(doc *document.Document, target any) (Result, error) {
	err := s.deserialize(doc, target)
	return ResultOf(err), err
}

// Unmarshal parses the XML document b and reads it into target.
func (s *Serializer) Unmarshal(b []byte, target any) (Result, error) {
	doc, err := document.Parse(b)
	if err != nil {
		return ResultError, err
	}
	return s.DeserializeInto(doc, target)
}

// DeserializeFile reads the document stored at path into target.
func (s *Serializer) DeserializeFile(path string, target any) (Result, error) {
	doc, err := document.ReadFile(path)
	if err != nil {
		return ResultError, err
	}
	return s.DeserializeInto(doc, target)
}

// RootType returns the type of the root of the graph held by doc.
func (s *Serializer) RootType(doc *document.Document) (reflect.Type, error) {
	identity, ok := doc.RootIdentity()
	if !ok {
		return nil, fmt.Errorf("%w: no declared root type", ErrMalformed)
	}
	return s.codecs.Catalog().Resolve(identity)
}

// RootTypeOfFile returns the type of the root of the graph held by the
// document stored at path.
func (s *Serializer) RootTypeOfFile(path string) (reflect.Type, error) {
	doc, err := document.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.RootType(doc)
}

func rootValue(x any) (reflect.Value, error) {
	v := reflect.ValueOf(x)
	for v.IsValid() && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %s", ErrNotStruct, v.Type())
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: nil", ErrNotStruct)
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrNotStruct, v.Type())
	}
	return v, nil
}
