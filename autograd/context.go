// Package autograd layers reverse-mode differentiation over the raw
// tensor operations. Differentiable ops record their inputs on the
// output tensor; Backward walks the recorded graph in reverse
// topological order and accumulates gradients into every participating
// tensor.
package autograd

import "sync"

// Context carries gradient-recording state. Recording is on by
// default and can be suspended with NoGrad, which nests: recording
// resumes only when the outermost suspension returns. A Context is
// safe for concurrent use; a nil *Context behaves as always-recording.
type Context struct {
	mu     sync.Mutex
	noGrad int
}

// NewContext returns a context with gradient recording enabled.
func NewContext() *Context {
	return &Context{}
}

// GradEnabled reports whether operations run under this context record
// the graph.
func (c *Context) GradEnabled() bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.noGrad == 0
}

// NoGrad runs f with gradient recording suspended. Calls nest.
func (c *Context) NoGrad(f func()) {
	if c == nil {
		f()
		return
	}
	c.mu.Lock()
	c.noGrad++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.noGrad--
		c.mu.Unlock()
	}()
	f()
}
