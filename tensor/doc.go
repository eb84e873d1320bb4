// Package tensor provides the core tensor types and operations for the
// Flint ML library.
//
// # Overview
//
// A Tensor pairs a Shape (dimension sizes plus per-dimension strides)
// with a reference-counted Storage buffer. Multiple tensors may view
// the same buffer under different shapes:
//
//   - Reshape: same data, new dimensions (contiguous tensors only)
//   - Permute: reordered dimensions and strides
//   - Expand: broadcast via zero strides, no data duplication
//
// # Basic Usage
//
//	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.MustShape(2, 2))
//	b, _ := tensor.Ones[float32](tensor.MustShape(2, 2))
//
//	c, err := tensor.Add(a, b)
//	d, err := tensor.MatMul(a, b)
//
// # Supported Data Types
//
//   - float32, float64 (floating-point, differentiable)
//   - int32 (integer, non-differentiable)
//
// # Broadcasting
//
// Binary elementwise operations follow NumPy broadcasting rules:
// shapes are compared right-to-left and dimensions are compatible when
// they are equal or one of them is 1.
//
// # Memory Management
//
// Storage buffers are reference-counted. View operations retain the
// underlying buffer; Release drops a reference and frees the buffer
// when the last reference is gone. Mutation through any view is visible
// through all aliases of the same buffer.
package tensor
