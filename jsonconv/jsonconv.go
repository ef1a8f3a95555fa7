// Package jsonconv provides a JSON converter factory for eventsocket.
//
// The factory produces a converter for any type, so it is usually registered
// last: earlier factories get the first chance to claim a type.
package jsonconv

import (
	"reflect"

	jsoniter "github.com/json-iterator/go"

	"github.com/chrisboulton/eventsocket-go"
)

// Factory converts values to and from JSON text.
type Factory struct {
	api     jsoniter.API
	strings bool
}

// Option configures a Factory.
type Option func(*Factory)

// WithAPI sets the json-iterator configuration used for encoding and
// decoding. The default is compatible with encoding/json.
func WithAPI(api jsoniter.API) Option {
	return func(f *Factory) {
		f.api = api
	}
}

// WithRawStrings leaves string payloads alone instead of encoding them as
// JSON string literals, so they reach the socket verbatim.
func WithRawStrings() Option {
	return func(f *Factory) {
		f.strings = true
	}
}

// New creates a JSON converter factory.
func New(opts ...Option) *Factory {
	f := &Factory{
		api: jsoniter.ConfigCompatibleWithStandardLibrary,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RequestConverter implements eventsocket.ConverterFactory.
func (f *Factory) RequestConverter(t reflect.Type) (eventsocket.RequestConverter, bool) {
	if t == nil {
		return nil, false
	}
	if f.strings && t.Kind() == reflect.String {
		return nil, false
	}
	return eventsocket.RequestConverterFunc(func(value any) (string, error) {
		return f.api.MarshalToString(value)
	}), true
}

// ResponseConverter implements eventsocket.ConverterFactory.
func (f *Factory) ResponseConverter(t reflect.Type) (eventsocket.ResponseConverter, bool) {
	if t == nil {
		return nil, false
	}
	return eventsocket.ResponseConverterFunc(func(text string) (any, error) {
		ptr := reflect.New(t)
		if err := f.api.UnmarshalFromString(text, ptr.Interface()); err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	}), true
}
