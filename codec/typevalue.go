package codec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/stealthrocket/graphdoc/internal/reflectext"
	"github.com/stealthrocket/graphdoc/types"
)

// TypeResolutionError is returned when a type value cannot be resolved from
// its textual form.
type TypeResolutionError struct {
	Name    string
	Package string
	Reason  string
}

func (e *TypeResolutionError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("cannot resolve type %s from package %s: %s", e.Name, e.Package, e.Reason)
	}
	return fmt.Sprintf("cannot resolve type %s: %s", e.Name, e.Reason)
}

// The type value codec writes a reflect.Type as its identity followed by the
// import path of its defining package, separated by a space. Identities
// never contain spaces.
func registerTypeValue(r *Registry) {
	r.mustRegister(Entry{
		Type: reflectext.ReflectTypeType,
		Text: &TextCodec{
			Encode: func(v reflect.Value) (string, error) {
				t := v.Interface().(reflect.Type)
				r.catalog.Add(t)
				return types.Identity(t) + " " + types.PackagePath(t), nil
			},
			Decode: func(s string) (reflect.Value, error) {
				t, err := r.ResolveType(s)
				if err != nil {
					return reflect.Value{}, err
				}
				return reflect.ValueOf(t), nil
			},
		},
	})
}

// ResolveType resolves the textual form of a type value.
func (r *Registry) ResolveType(s string) (reflect.Type, error) {
	name, pkg, _ := strings.Cut(strings.TrimSpace(s), " ")
	pkg = strings.TrimSpace(pkg)
	if name == "" {
		return nil, &TypeResolutionError{Reason: "empty type name"}
	}
	if pkg != "" && !r.catalog.HasPackage(pkg) {
		return nil, &TypeResolutionError{Name: name, Package: pkg, Reason: "package not loaded"}
	}
	t, err := r.catalog.Resolve(name)
	if err != nil {
		return nil, &TypeResolutionError{Name: name, Package: pkg, Reason: err.Error()}
	}
	return t, nil
}
