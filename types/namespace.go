package types

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/stealthrocket/graphdoc/internal/reflectext"
	"github.com/stealthrocket/graphdoc/meta"
)

// NamePrefix prefixes the symbolic names assigned to types in documents.
const NamePrefix = "ns"

// ErrMaxDepth is returned when an object graph nests deeper than allowed,
// which usually means it contains a cycle through non-shared pointers.
var ErrMaxDepth = errors.New("maximum object graph depth exceeded")

// ErrAmbiguousIdentity is returned when distinct types have the same
// identity, which happens for types of the same name declared in different
// functions of a package.
var ErrAmbiguousIdentity = errors.New("distinct types share an identity")

// Ns binds a type to its symbolic name in one document.
type Ns struct {
	Name string
	Type reflect.Type
	Kind Kind
}

// Namespace is the bidirectional table of the types of one document.
type Namespace struct {
	order  []*Ns
	byType map[reflect.Type]*Ns
	byName map[string]*Ns
	// names declared by the type table whose identity did not resolve.
	unresolved     map[string]error
	unresolvedList []string
}

func newNamespace() *Namespace {
	return &Namespace{
		byType:     make(map[reflect.Type]*Ns),
		byName:     make(map[string]*Ns),
		unresolved: make(map[string]error),
	}
}

func (n *Namespace) add(ns *Ns) {
	n.order = append(n.order, ns)
	n.byName[ns.Name] = ns
	if _, ok := n.byType[ns.Type]; !ok {
		n.byType[ns.Type] = ns
	}
}

// Entries returns the descriptors in name order.
func (n *Namespace) Entries() []*Ns {
	return n.order
}

// Len returns the number of types in the namespace.
func (n *Namespace) Len() int {
	return len(n.order)
}

// ByName returns the descriptor with the given symbolic name.
func (n *Namespace) ByName(name string) (*Ns, bool) {
	ns, ok := n.byName[name]
	return ns, ok
}

// Unresolved returns the error met resolving the type declared under name,
// or nil if name was resolved or is not declared.
func (n *Namespace) Unresolved(name string) error {
	return n.unresolved[name]
}

// UnresolvedNames returns the declared names whose type did not resolve, in
// table order.
func (n *Namespace) UnresolvedNames() []string {
	return n.unresolvedList
}

// ByType returns the descriptor of type t.
func (n *Namespace) ByType(t reflect.Type) (*Ns, bool) {
	ns, ok := n.byType[t]
	return ns, ok
}

// Lookup returns the descriptor under which a value of type t is written.
// Enum types are written under the name of their underlying type; the
// returned descriptor then carries the enum type and the Enum kind.
func (n *Namespace) Lookup(t reflect.Type, codecs Codecs) (*Ns, error) {
	if KindOf(t, codecs) == Enum {
		u := reflectext.Underlying(t)
		ns, ok := n.byType[u]
		if !ok {
			return nil, fmt.Errorf("type %s was not discovered", u)
		}
		return &Ns{Name: ns.Name, Type: t, Kind: Enum}, nil
	}
	ns, ok := n.byType[t]
	if !ok {
		return nil, fmt.Errorf("type %s was not discovered", t)
	}
	return ns, nil
}

// Entry is one row of a document type table.
type Entry struct {
	Name     string
	Identity string
}

// Table returns the rows of the type table, in name order.
func (n *Namespace) Table() []Entry {
	table := make([]Entry, len(n.order))
	for i, ns := range n.order {
		table[i] = Entry{Name: ns.Name, Identity: Identity(ns.Type)}
	}
	return table
}

// FromTable rebuilds the namespace of a document from its type table,
// resolving identities through the catalog.
//
// Identities that do not resolve do not fail the call: documents may hold
// members that were since removed, along with their types. The error is
// kept and reported by Unresolved.
func FromTable(table []Entry, catalog *Catalog, codecs Codecs) (*Namespace, error) {
	n := newNamespace()
	for _, e := range table {
		if _, dup := n.byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate type name %q", e.Name)
		}
		if _, dup := n.unresolved[e.Name]; dup {
			return nil, fmt.Errorf("duplicate type name %q", e.Name)
		}
		t, err := catalog.Resolve(e.Identity)
		if err != nil {
			n.unresolved[e.Name] = fmt.Errorf("type %s: %w", e.Name, err)
			n.unresolvedList = append(n.unresolvedList, e.Name)
			continue
		}
		n.add(&Ns{Name: e.Name, Type: t, Kind: KindOf(t, codecs)})
	}
	return n, nil
}

// Discover walks the object graph rooted at the struct value root and
// returns the namespace of every type a document of the graph refers to.
//
// Types are collected in first encounter order: the root type, then the
// members of each struct in declaration order, depth first into every value
// actually present. Interface members contribute the dynamic type of their
// value. Enum members contribute their underlying type. Names "ns0", "ns1",
// ... are assigned in that order, so discovering the same graph twice
// yields the same namespace.
func Discover(root reflect.Value, members meta.Provider, codecs Codecs, maxDepth int) (ns *Namespace, err error) {
	d := &discovery{
		members:  members,
		codecs:   codecs,
		maxDepth: maxDepth,
		seen:     make(map[reflect.Type]struct{}),
		visited:  make(map[uintptr]reflect.Type),
	}
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			err = e
		}
	}()

	d.add(root.Type())
	d.walkMembers(reflectext.Addressable(root))

	ns = newNamespace()
	identities := make(map[string]reflect.Type, len(d.order))
	for i, t := range d.order {
		id := Identity(t)
		if prev, ok := identities[id]; ok {
			return nil, fmt.Errorf("%w: %q names two types of the graph, %s and %s", ErrAmbiguousIdentity, id, prev, t)
		}
		identities[id] = t
		ns.add(&Ns{Name: NamePrefix + strconv.Itoa(i), Type: t, Kind: KindOf(t, codecs)})
	}
	return ns, nil
}

type discovery struct {
	members  meta.Provider
	codecs   Codecs
	maxDepth int
	depth    int

	order []reflect.Type
	seen  map[reflect.Type]struct{}
	// pointers already recursed into, so cycles through shared objects
	// terminate.
	visited map[uintptr]reflect.Type
}

func (d *discovery) add(t reflect.Type) {
	if _, ok := d.seen[t]; ok {
		return
	}
	d.seen[t] = struct{}{}
	d.order = append(d.order, t)
}

func (d *discovery) enter() {
	d.depth++
	if d.maxDepth > 0 && d.depth > d.maxDepth {
		panic(fmt.Errorf("%w (%d)", ErrMaxDepth, d.maxDepth))
	}
}

func (d *discovery) leave() { d.depth-- }

func (d *discovery) walkMembers(v reflect.Value) {
	d.enter()
	defer d.leave()

	for _, m := range d.members.Members(v.Type()) {
		d.member(m.Type, reflectext.Field(v, m.Index, m.Exported), m.Binary)
	}
}

// Effective returns the type and value a member of declared type t holding
// v is written as: the dynamic type for non-nil interfaces, the declared
// type otherwise.
func Effective(t reflect.Type, v reflect.Value) (reflect.Type, reflect.Value) {
	if t.Kind() == reflect.Interface && v.IsValid() && !v.IsNil() {
		v = v.Elem()
		return v.Type(), v
	}
	return t, v
}

func (d *discovery) member(declared reflect.Type, v reflect.Value, binary bool) {
	t, v := Effective(declared, v)

	switch KindOf(t, d.codecs) {
	case Struct:
		d.add(t)
		if HasCodec(d.codecs, t, binary) {
			return
		}
		if t.Kind() == reflect.Pointer {
			if v.IsNil() {
				return
			}
			p := reflectext.PointerKey(v)
			if seen, ok := d.visited[p]; ok && seen == t {
				return
			}
			d.visited[p] = t
			v = v.Elem()
		}
		d.walkMembers(reflectext.Addressable(v))

	case Primitive:
		d.add(t)

	case Enum:
		d.add(reflectext.Underlying(t))

	case List:
		d.add(t)
		if v.IsNil() || HasCodec(d.codecs, t, binary) {
			return
		}
		d.enter()
		for i := 0; i < v.Len(); i++ {
			d.member(t.Elem(), v.Index(i), binary)
		}
		d.leave()

	case Array:
		d.add(t)
		if HasCodec(d.codecs, t, binary) {
			return
		}
		dims, elem := reflectext.ArrayShape(t)
		d.enter()
		for i := 0; i < reflectext.ArrayLen(dims); i++ {
			d.member(elem, reflectext.ArrayAt(v, reflectext.ArrayIndices(dims, i)), binary)
		}
		d.leave()

	case Map:
		d.add(t)
		if v.IsNil() || HasCodec(d.codecs, t, binary) {
			return
		}
		d.enter()
		for _, k := range reflectext.SortedMapKeys(v) {
			d.member(t.Key(), k, binary)
			d.member(t.Elem(), v.MapIndex(k), binary)
		}
		d.leave()

	default:
		d.add(t)
	}
}
