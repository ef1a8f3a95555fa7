package eventsocket

// Interceptor transforms the text of a received message before it is exposed.
// A nil input means the text is absent; returning nil collapses it.
type Interceptor interface {
	Intercept(data *string) *string
}

// InterceptorFunc adapts a plain string function into an Interceptor.
// Absent input stays absent.
type InterceptorFunc func(string) string

// Intercept implements Interceptor.
func (f InterceptorFunc) Intercept(data *string) *string {
	if data == nil {
		return nil
	}
	out := f(*data)
	return &out
}

// OptionalInterceptorFunc adapts a function that sees, and may produce,
// absent text.
type OptionalInterceptorFunc func(*string) *string

// Intercept implements Interceptor.
func (f OptionalInterceptorFunc) Intercept(data *string) *string {
	return f(data)
}

// Chain is an ordered list of interceptors.
type Chain []Interceptor

// Intercept applies every interceptor left to right, each receiving the
// previous one's output. Every stage runs, even after the text became absent.
func (c Chain) Intercept(data *string) *string {
	for _, interceptor := range c {
		data = interceptor.Intercept(data)
	}
	return data
}
