// Package yamlconv provides a YAML converter factory for eventsocket.
package yamlconv

import (
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chrisboulton/eventsocket-go"
)

// Factory converts values to and from YAML documents. Only the types it was
// created for are claimed; everything else falls through to later factories.
type Factory struct {
	types  map[reflect.Type]struct{}
	indent int
}

// New creates a factory claiming the types of the given sample values.
func New(samples ...any) *Factory {
	f := &Factory{
		types:  make(map[reflect.Type]struct{}),
		indent: 2,
	}
	for _, s := range samples {
		f.types[reflect.TypeOf(s)] = struct{}{}
	}
	return f
}

// For creates a factory claiming T.
func For[T any]() *Factory {
	f := New()
	f.types[reflect.TypeFor[T]()] = struct{}{}
	return f
}

// Indent sets the encoder indentation.
func (f *Factory) Indent(spaces int) *Factory {
	f.indent = spaces
	return f
}

func (f *Factory) claims(t reflect.Type) bool {
	_, ok := f.types[t]
	return ok
}

// RequestConverter implements eventsocket.ConverterFactory.
func (f *Factory) RequestConverter(t reflect.Type) (eventsocket.RequestConverter, bool) {
	if !f.claims(t) {
		return nil, false
	}
	return eventsocket.RequestConverterFunc(func(value any) (string, error) {
		var sb strings.Builder
		enc := yaml.NewEncoder(&sb)
		enc.SetIndent(f.indent)
		if err := enc.Encode(value); err != nil {
			return "", err
		}
		if err := enc.Close(); err != nil {
			return "", err
		}
		return sb.String(), nil
	}), true
}

// ResponseConverter implements eventsocket.ConverterFactory.
func (f *Factory) ResponseConverter(t reflect.Type) (eventsocket.ResponseConverter, bool) {
	if !f.claims(t) {
		return nil, false
	}
	return eventsocket.ResponseConverterFunc(func(text string) (any, error) {
		ptr := reflect.New(t)
		if err := yaml.Unmarshal([]byte(text), ptr.Interface()); err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	}), true
}
