// Package alloc is the fail-fast allocation collaborator for the Flint
// core. All tensor buffer allocation funnels through Bytes, which
// rejects zero-size and overflowing requests before touching memory.
//
// By default a failed request is fatal: the call site is logged and the
// process exits. Installing a failure handler with SetFailureHandler
// turns failures into returned errors instead, with the handler invoked
// first.
package alloc

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrAllocationFailure is the sentinel for rejected allocation requests.
var ErrAllocationFailure = errors.New("allocation failure")

var (
	mu      sync.Mutex
	handler func(error)
)

// SetFailureHandler installs a hook invoked on allocation failure.
// With a handler installed, Bytes returns an error instead of
// terminating the process. Passing nil restores the fatal default.
func SetFailureHandler(h func(error)) {
	mu.Lock()
	defer mu.Unlock()
	handler = h
}

// Bytes allocates a zeroed byte buffer holding count elements of the
// given size. Zero, negative, and overflowing requests fail.
func Bytes(count, size int) ([]byte, error) {
	if count <= 0 || size <= 0 {
		return nil, fail(fmt.Errorf("%w: invalid request of %d elements of %d bytes", ErrAllocationFailure, count, size))
	}
	if count > math.MaxInt/size {
		return nil, fail(fmt.Errorf("%w: request of %d elements of %d bytes overflows", ErrAllocationFailure, count, size))
	}
	return make([]byte, count*size), nil
}

func fail(err error) error {
	mu.Lock()
	h := handler
	mu.Unlock()

	if h != nil {
		h(err)
		return err
	}
	log.Fatal().Caller(2).Err(err).Msg("allocation failed")
	return err
}
