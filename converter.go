package eventsocket

import (
	"reflect"
	"sync"
)

// RequestConverter encodes an outgoing value into the text frame payload.
type RequestConverter interface {
	Convert(value any) (string, error)
}

// ResponseConverter decodes received text into a value.
type ResponseConverter interface {
	Convert(text string) (any, error)
}

// RequestConverterFunc adapts a function into a RequestConverter.
type RequestConverterFunc func(value any) (string, error)

// Convert implements RequestConverter.
func (f RequestConverterFunc) Convert(value any) (string, error) {
	return f(value)
}

// ResponseConverterFunc adapts a function into a ResponseConverter.
type ResponseConverterFunc func(text string) (any, error)

// Convert implements ResponseConverter.
func (f ResponseConverterFunc) Convert(text string) (any, error) {
	return f(text)
}

// ConverterFactory resolves converters for a runtime type. The boolean result
// reports whether the factory has a converter for t; absence is not an error.
type ConverterFactory interface {
	RequestConverter(t reflect.Type) (RequestConverter, bool)
	ResponseConverter(t reflect.Type) (ResponseConverter, bool)
}

// factories is an ordered factory list. The first factory willing to produce
// a converter wins.
type factories []ConverterFactory

func (fs factories) requestConverter(t reflect.Type) (RequestConverter, bool) {
	for _, f := range fs {
		if c, ok := f.RequestConverter(t); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}

func (fs factories) responseConverter(t reflect.Type) (ResponseConverter, bool) {
	for _, f := range fs {
		if c, ok := f.ResponseConverter(t); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}

// TypeRegistry is a ConverterFactory backed by an explicit table of
// converters keyed by type. It is safe for concurrent use.
type TypeRegistry struct {
	mu        sync.RWMutex
	requests  map[reflect.Type]RequestConverter
	responses map[reflect.Type]ResponseConverter
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		requests:  make(map[reflect.Type]RequestConverter),
		responses: make(map[reflect.Type]ResponseConverter),
	}
}

// RegisterRequest registers an encoder for values of type T.
func RegisterRequest[T any](r *TypeRegistry, encode func(T) (string, error)) {
	conv := RequestConverterFunc(func(value any) (string, error) {
		v, ok := value.(T)
		if !ok {
			return "", &ConversionError{Type: reflect.TypeFor[T](), Err: ErrNoConverter}
		}
		return encode(v)
	})

	r.mu.Lock()
	r.requests[reflect.TypeFor[T]()] = conv
	r.mu.Unlock()
}

// RegisterResponse registers a decoder producing values of type T.
func RegisterResponse[T any](r *TypeRegistry, decode func(string) (T, error)) {
	conv := ResponseConverterFunc(func(text string) (any, error) {
		return decode(text)
	})

	r.mu.Lock()
	r.responses[reflect.TypeFor[T]()] = conv
	r.mu.Unlock()
}

// RequestConverter implements ConverterFactory.
func (r *TypeRegistry) RequestConverter(t reflect.Type) (RequestConverter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.requests[t]
	return c, ok
}

// ResponseConverter implements ConverterFactory.
func (r *TypeRegistry) ResponseConverter(t reflect.Type) (ResponseConverter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.responses[t]
	return c, ok
}

// Types returns the number of registered request and response types.
func (r *TypeRegistry) Types() (requests, responses int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.requests), len(r.responses)
}
