package codec

import (
	"fmt"
	"path/filepath"
	"plugin"
)

// ModuleSymbol is the name of the symbol looked up in codec module plugins.
const ModuleSymbol = "GraphdocModule"

// Module is a set of codecs registered together. Plugins built with
// -buildmode=plugin expose one as a package level variable:
//
//	var GraphdocModule codec.Module = myCodecs{}
type Module interface {
	Codecs() []Entry
}

// ModuleFunc adapts a function to the Module interface.
type ModuleFunc func() []Entry

func (f ModuleFunc) Codecs() []Entry { return f() }

// RegisterModule registers every codec of m.
func (r *Registry) RegisterModule(m Module) error {
	for _, e := range m.Codecs() {
		if err := r.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// LoadModule opens the Go plugin at path and registers the codecs of the
// module it exports. Loading the same path twice has no effect.
func (r *Registry) LoadModule(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, ok := r.modules.Load(abs); ok {
		return nil
	}

	p, err := plugin.Open(abs)
	if err != nil {
		return fmt.Errorf("loading codec module: %w", err)
	}
	sym, err := p.Lookup(ModuleSymbol)
	if err != nil {
		return fmt.Errorf("loading codec module %s: %w", abs, err)
	}

	var m Module
	switch s := sym.(type) {
	case *Module:
		m = *s
	case Module:
		m = s
	default:
		return fmt.Errorf("loading codec module %s: symbol %s has type %T, want codec.Module", abs, ModuleSymbol, sym)
	}
	if m == nil {
		return fmt.Errorf("loading codec module %s: symbol %s is nil", abs, ModuleSymbol)
	}

	if _, loaded := r.modules.LoadOrStore(abs, m); loaded {
		return nil
	}
	if err := r.RegisterModule(m); err != nil {
		r.modules.Delete(abs)
		return fmt.Errorf("loading codec module %s: %w", abs, err)
	}
	return nil
}
