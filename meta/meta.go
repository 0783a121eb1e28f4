// Package meta describes the serializable members of Go types.
//
// A [Provider] is the only way the serializer learns about the structure of
// a type. The default provider, [TagProvider], reads `graph` struct tags:
//
//	type Scene struct {
//		Name    string                          // included
//		Weights []float32 `graph:",binary"`     // prefer a binary codec
//		Root    *Node     `graph:",priority=high"`
//		cache   map[string]int                  // unexported: skipped
//		seed    int64     `graph:",include"`    // unexported: forced in
//		Scratch []byte    `graph:"-"`           // excluded
//	}
//
// Fields of embedded structs are flattened after the fields declared by the
// embedding struct.
package meta

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// TagName is the struct tag key read by [TagProvider].
const TagName = "graph"

// Priority orders members within a struct. Members are written from the
// highest priority to the lowest; members without a priority are written
// last.
type Priority uint8

const (
	PriorityNone Priority = iota
	PriorityLowest
	PriorityVeryLow
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityVeryHigh
	PriorityHighest
)

var priorityNames = [...]string{
	PriorityNone:     "none",
	PriorityLowest:   "lowest",
	PriorityVeryLow:  "verylow",
	PriorityLow:      "low",
	PriorityMedium:   "medium",
	PriorityHigh:     "high",
	PriorityVeryHigh: "veryhigh",
	PriorityHighest:  "highest",
}

func (p Priority) String() string {
	if int(p) < len(priorityNames) {
		return priorityNames[p]
	}
	return fmt.Sprintf("Priority(%d)", uint8(p))
}

// ParsePriority parses a priority level name.
func ParsePriority(s string) (Priority, error) {
	for i, name := range priorityNames {
		if strings.EqualFold(s, name) {
			return Priority(i), nil
		}
	}
	return PriorityNone, fmt.Errorf("unknown priority %q", s)
}

// Member describes one serializable member of a struct type.
type Member struct {
	// Name is the element name used in documents.
	Name string
	// Type is the declared type of the member.
	Type reflect.Type
	// Index is the field index sequence, as used by
	// [reflect.Value.FieldByIndex].
	Index []int
	// Exported is false for unexported fields included with the include
	// option. Those need unsafe access.
	Exported bool
	// Binary requests a binary codec when one is registered.
	Binary bool
	// Priority is the serialization priority.
	Priority Priority
}

// Shared is implemented by types with shared-object semantics: every
// pointer to such a value is written once into the shared pool of a
// document and referenced by identifier.
type Shared interface {
	SharedObject()
}

// Provider is the introspection capability of the serializer.
type Provider interface {
	// Members returns the serializable members of struct type t in
	// declaration order.
	Members(t reflect.Type) []Member
	// IsShared reports whether values of type t have shared-object
	// semantics.
	IsShared(t reflect.Type) bool
}

// Ordered returns members sorted by descending priority. Members with equal
// priority keep their declaration order.
func Ordered(members []Member) []Member {
	out := make([]Member, len(members))
	copy(out, members)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

var sharedType = reflect.TypeOf((*Shared)(nil)).Elem()

// TagProvider is a [Provider] driven by struct tags. It is safe for
// concurrent use.
type TagProvider struct {
	cache  *xsync.MapOf[reflect.Type, []Member]
	shared *xsync.MapOf[reflect.Type, struct{}]
}

// NewTagProvider returns an empty TagProvider.
func NewTagProvider() *TagProvider {
	return &TagProvider{
		cache:  xsync.NewMapOf[reflect.Type, []Member](),
		shared: xsync.NewMapOf[reflect.Type, struct{}](),
	}
}

// MarkShared gives shared-object semantics to pointers to t. It is an
// alternative to implementing [Shared] for types declared elsewhere.
func (p *TagProvider) MarkShared(t reflect.Type) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	p.shared.Store(t, struct{}{})
}

// IsShared reports whether t is a pointer to a struct that implements
// [Shared] or was marked with [TagProvider.MarkShared].
func (p *TagProvider) IsShared(t reflect.Type) bool {
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return false
	}
	if _, ok := p.shared.Load(t.Elem()); ok {
		return true
	}
	return t.Implements(sharedType)
}

// Members returns the members of struct type t. Results are cached.
func (p *TagProvider) Members(t reflect.Type) []Member {
	if t.Kind() != reflect.Struct {
		return nil
	}
	if m, ok := p.cache.Load(t); ok {
		return m
	}
	m, _ := p.cache.LoadOrCompute(t, func() []Member {
		seen := make(map[string]struct{})
		return collect(t, nil, true, seen, nil)
	})
	return m
}

func collect(t reflect.Type, prefix []int, exported bool, seen map[string]struct{}, out []Member) []Member {
	var embedded []reflect.StructField

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		opts := parseTag(f.Tag.Get(TagName))
		if opts.exclude {
			continue
		}
		if f.Anonymous && opts.name == "" && f.Type.Kind() == reflect.Struct {
			embedded = append(embedded, f)
			continue
		}
		if !f.IsExported() && !opts.include {
			continue
		}
		name := f.Name
		if opts.name != "" {
			name = opts.name
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		out = append(out, Member{
			Name:     name,
			Type:     f.Type,
			Index:    appendIndex(prefix, f.Index...),
			Exported: exported && f.IsExported(),
			Binary:   opts.binary,
			Priority: opts.priority,
		})
	}

	for _, f := range embedded {
		out = collect(f.Type, appendIndex(prefix, f.Index...), exported && f.IsExported(), seen, out)
	}
	return out
}

func appendIndex(prefix []int, index ...int) []int {
	out := make([]int, 0, len(prefix)+len(index))
	out = append(out, prefix...)
	return append(out, index...)
}

type tagOptions struct {
	name     string
	exclude  bool
	include  bool
	binary   bool
	priority Priority
}

func parseTag(tag string) tagOptions {
	var opts tagOptions
	if tag == "-" {
		opts.exclude = true
		return opts
	}
	parts := strings.Split(tag, ",")
	opts.name = strings.TrimSpace(parts[0])
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		switch {
		case part == "include":
			opts.include = true
		case part == "binary":
			opts.binary = true
		case strings.HasPrefix(part, "priority="):
			if p, err := ParsePriority(strings.TrimPrefix(part, "priority=")); err == nil {
				opts.priority = p
			}
		}
	}
	return opts
}
