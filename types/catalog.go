package types

import (
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/stealthrocket/graphdoc/internal/reflectext"
)

// Catalog resolves type identities back to reflect.Type values.
//
// Go has no way to load a type from its name, so every named type that may
// appear in a document must have been added to the catalog of the reading
// process, either because the same process wrote a document containing it,
// or through explicit registration. Unnamed composite types are resolved
// structurally from their components.
//
// A Catalog is safe for concurrent use.
type Catalog struct {
	byName   *xsync.MapOf[string, reflect.Type]
	packages *xsync.MapOf[string, struct{}]
}

// NewCatalog returns a catalog that knows the predeclared types and the
// standard library types that have built-in codecs.
func NewCatalog() *Catalog {
	c := &Catalog{
		byName:   xsync.NewMapOf[string, reflect.Type](),
		packages: xsync.NewMapOf[string, struct{}](),
	}
	for _, t := range []reflect.Type{
		reflectext.AnyType,
		reflectext.BoolType,
		reflectext.IntType,
		reflectext.Int8Type,
		reflectext.Int16Type,
		reflectext.Int32Type,
		reflectext.Int64Type,
		reflectext.UintType,
		reflectext.Uint8Type,
		reflectext.Uint16Type,
		reflectext.Uint32Type,
		reflectext.Uint64Type,
		reflectext.UintptrType,
		reflectext.Float32Type,
		reflectext.Float64Type,
		reflectext.Complex64Type,
		reflectext.Complex128Type,
		reflectext.StringType,
		reflectext.ErrorType,
		reflectext.ReflectTypeType,
		reflect.TypeFor[time.Time](),
		reflect.TypeFor[time.Duration](),
		reflect.TypeFor[*big.Int](),
		reflect.TypeFor[*big.Float](),
		reflect.TypeFor[*big.Rat](),
	} {
		c.Add(t)
	}
	return c
}

// Add registers t and the types it is constructed from (pointer, slice,
// array and map components). Struct fields are not followed; use AddGraph
// for that.
func (c *Catalog) Add(t reflect.Type) {
	if t == nil {
		return
	}
	if _, loaded := c.byName.LoadOrStore(Identity(t), t); loaded {
		return
	}
	if pkg := t.PkgPath(); pkg != "" {
		c.packages.Store(pkg, struct{}{})
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		c.Add(t.Elem())
	case reflect.Map:
		c.Add(t.Key())
		c.Add(t.Elem())
	}
}

// AddGraph registers t and, recursively, the declared types of the members
// reported by the members function for every struct type encountered.
// Dynamic types held by interface members are not reachable this way and
// must be added separately.
func (c *Catalog) AddGraph(t reflect.Type, members func(reflect.Type) []reflect.Type) {
	seen := make(map[reflect.Type]struct{})
	var walk func(t reflect.Type)
	walk = func(t reflect.Type) {
		if t == nil {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		c.Add(t)
		if u := reflectext.Underlying(t); u != nil && u != t {
			c.Add(u)
		}
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			walk(t.Elem())
		case reflect.Map:
			walk(t.Key())
			walk(t.Elem())
		case reflect.Struct:
			for _, m := range members(t) {
				walk(m)
			}
		}
	}
	walk(t)
}

// HasPackage reports whether at least one type of the package with the
// given import path is known.
func (c *Catalog) HasPackage(pkg string) bool {
	_, ok := c.packages.Load(pkg)
	return ok
}

// Len returns the number of named entries in the catalog.
func (c *Catalog) Len() int {
	return c.byName.Size()
}

// Resolve returns the type with the given identity.
func (c *Catalog) Resolve(name string) (reflect.Type, error) {
	if t, ok := c.byName.Load(name); ok {
		return t, nil
	}
	kind, key, elem, n, err := splitComposite(name)
	if err != nil {
		return nil, err
	}
	if kind == reflect.Invalid {
		return nil, fmt.Errorf("type %q is not registered", name)
	}

	et, err := c.Resolve(elem)
	if err != nil {
		return nil, err
	}
	var t reflect.Type
	switch kind {
	case reflect.Pointer:
		t = reflect.PointerTo(et)
	case reflect.Slice:
		t = reflect.SliceOf(et)
	case reflect.Array:
		t = reflect.ArrayOf(n, et)
	case reflect.Map:
		kt, err := c.Resolve(key)
		if err != nil {
			return nil, err
		}
		if !kt.Comparable() {
			return nil, fmt.Errorf("invalid map key type %q", key)
		}
		t = reflect.MapOf(kt, et)
	}
	c.byName.Store(name, t)
	return t, nil
}
