package tensor

import (
	"fmt"
)

// Op identifies the operation that produced a non-leaf tensor. The set
// is closed so the backward pass can switch over it exhaustively.
type Op int

// Recordable operations.
const (
	OpNone Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMatMul
)

// String returns the operation name.
func (op Op) String() string {
	switch op {
	case OpNone:
		return "none"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpMatMul:
		return "matmul"
	default:
		return "unknown"
	}
}

// Tensor pairs a Shape with a reference to a Storage buffer. A tensor
// either owns its storage (created by a factory) or borrows it (created
// by a view operation); both hold a counted reference.
//
// Tensors produced by recorded operations additionally carry their
// direct input tensors and the producing operation, forming the
// implicit autograd graph walked by the backward pass.
type Tensor struct {
	storage *Storage
	shape   Shape
	dtype   DataType

	requiresGrad bool
	grad         *Tensor
	isLeaf       bool
	parents      []*Tensor
	op           Op
}

// New creates a tensor with zero-initialized owning storage.
func New(shape Shape, dtype DataType) (*Tensor, error) {
	storage, err := newStorage(shape.NumElements(), dtype)
	if err != nil {
		return nil, err
	}
	return &Tensor{
		storage: storage,
		shape:   shape.Clone(),
		dtype:   dtype,
		isLeaf:  true,
	}, nil
}

// FromSlice creates a tensor holding a copy of the given data. The
// element type determines the tensor's dtype.
func FromSlice[T DType](data []T, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("%w: shape %v requires %d elements, got %d",
			ErrShapeMismatch, shape, shape.NumElements(), len(data))
	}

	var dummy T
	t, err := New(shape, inferDataType(dummy))
	if err != nil {
		return nil, err
	}
	copy(typedData[T](t), data)
	return t, nil
}

// newView wraps t's storage under a new shape without copying data.
// The view borrows the buffer (retains a reference) and starts with a
// fresh autograd state, inheriting only the gradient requirement.
func newView(t *Tensor, shape Shape) *Tensor {
	t.storage.Retain()
	return &Tensor{
		storage:      t.storage,
		shape:        shape,
		dtype:        t.dtype,
		requiresGrad: t.requiresGrad,
		isLeaf:       t.isLeaf,
	}
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// Ndim returns the number of dimensions.
func (t *Tensor) Ndim() int {
	return t.shape.Ndim()
}

// Dim returns the size of the given dimension.
func (t *Tensor) Dim(axis int) int {
	return t.shape.Dim(axis)
}

// NumElements returns the total number of logical elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// Strides returns the tensor's per-dimension strides in element units.
func (t *Tensor) Strides() []int {
	return t.shape.Strides()
}

// IsContiguous reports whether the tensor's layout is row-major
// contiguous.
func (t *Tensor) IsContiguous() bool {
	return t.shape.IsContiguous()
}

// Storage returns the underlying buffer. Used by low-level consumers
// such as the persistence layer.
func (t *Tensor) Storage() *Storage {
	return t.storage
}

// AsInt32 reinterprets the underlying buffer as []int32.
func (t *Tensor) AsInt32() []int32 {
	return t.storage.AsInt32()
}

// AsFloat32 reinterprets the underlying buffer as []float32.
//
// WARNING: the slice addresses physical storage in memory order. For a
// permuted or expanded view, logical order differs; use At instead.
func (t *Tensor) AsFloat32() []float32 {
	return t.storage.AsFloat32()
}

// AsFloat64 reinterprets the underlying buffer as []float64.
func (t *Tensor) AsFloat64() []float64 {
	return t.storage.AsFloat64()
}

// typedData returns the storage as a []T. Panics if T does not match
// the tensor's dtype.
func typedData[T DType](t *Tensor) []T {
	var dummy T
	switch any(dummy).(type) {
	case int32:
		return any(t.storage.AsInt32()).([]T)
	case float32:
		return any(t.storage.AsFloat32()).([]T)
	case float64:
		return any(t.storage.AsFloat64()).([]T)
	default:
		panic("unsupported type")
	}
}

// elemOffset validates coordinates against the shape and translates
// them into a physical element offset.
func (t *Tensor) elemOffset(indices []int) int {
	if len(indices) != t.shape.Ndim() {
		panic(fmt.Sprintf("expected %d indices, got %d", t.shape.Ndim(), len(indices)))
	}
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape.dims[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, t.shape.dims[i]))
		}
	}
	return t.shape.offsetOf(indices)
}

// At returns the element at the given coordinates as a float64.
// Panics if the coordinates are out of bounds.
func (t *Tensor) At(indices ...int) float64 {
	offset := t.elemOffset(indices)
	switch t.dtype {
	case Int32:
		return float64(t.storage.AsInt32()[offset])
	case Float32:
		return float64(t.storage.AsFloat32()[offset])
	case Float64:
		return t.storage.AsFloat64()[offset]
	default:
		panic("unknown data type")
	}
}

// Set stores a value at the given coordinates, converting to the
// tensor's dtype. Panics if the coordinates are out of bounds.
func (t *Tensor) Set(value float64, indices ...int) {
	offset := t.elemOffset(indices)
	switch t.dtype {
	case Int32:
		t.storage.AsInt32()[offset] = int32(value)
	case Float32:
		t.storage.AsFloat32()[offset] = float32(value)
	case Float64:
		t.storage.AsFloat64()[offset] = value
	default:
		panic("unknown data type")
	}
}

// Item returns the single value of a one-element tensor.
// Panics otherwise.
func (t *Tensor) Item() float64 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item() requires a one-element tensor, got shape %v", t.shape))
	}
	switch t.dtype {
	case Int32:
		return float64(t.storage.AsInt32()[0])
	case Float32:
		return float64(t.storage.AsFloat32()[0])
	case Float64:
		return t.storage.AsFloat64()[0]
	default:
		panic("unknown data type")
	}
}

// Fill sets every logical element to the given value.
func (t *Tensor) Fill(value float64) {
	if t.IsContiguous() {
		switch t.dtype {
		case Int32:
			data := t.storage.AsInt32()
			for i := range data {
				data[i] = int32(value)
			}
		case Float32:
			data := t.storage.AsFloat32()
			for i := range data {
				data[i] = float32(value)
			}
		case Float64:
			data := t.storage.AsFloat64()
			for i := range data {
				data[i] = value
			}
		}
		return
	}

	coords := make([]int, t.Ndim())
	for i := 0; i < t.NumElements(); i++ {
		t.Set(value, coords...)
		advance(coords, t.shape.dims)
	}
}

// Zero clears every logical element.
func (t *Tensor) Zero() {
	t.Fill(0)
}

// Clone deep-copies the tensor's shape and data into new owning
// storage. The clone carries no autograd state.
func (t *Tensor) Clone() (*Tensor, error) {
	out, err := New(t.shape, t.dtype)
	if err != nil {
		return nil, err
	}
	copy(out.storage.data, t.storage.data)
	out.shape = t.shape.Clone()
	return out, nil
}

// RequiresGrad reports whether the tensor participates in gradient
// computation.
func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

// RequireGrad marks the tensor for gradient computation and returns it
// for chaining. Panics for integer tensors; gradients require a
// floating-point dtype.
func (t *Tensor) RequireGrad() *Tensor {
	if !t.dtype.IsFloat() {
		panic(fmt.Sprintf("gradients require a floating-point dtype, got %s", t.dtype))
	}
	t.requiresGrad = true
	return t
}

// SetRequiresGrad toggles gradient participation.
func (t *Tensor) SetRequiresGrad(v bool) {
	if v && !t.dtype.IsFloat() {
		panic(fmt.Sprintf("gradients require a floating-point dtype, got %s", t.dtype))
	}
	t.requiresGrad = v
}

// IsLeaf reports whether the tensor was created directly rather than
// produced by a recorded operation.
func (t *Tensor) IsLeaf() bool {
	return t.isLeaf
}

// Parents returns the tensors this one was computed from, in operand
// order. Empty for leaf tensors.
func (t *Tensor) Parents() []*Tensor {
	return t.parents
}

// Op returns the operation that produced this tensor, or OpNone for
// leaves.
func (t *Tensor) Op() Op {
	return t.op
}

// RecordOp stamps the tensor as the output of op over the given
// parents. Used by the autograd layer when gradient recording is
// enabled.
func (t *Tensor) RecordOp(op Op, parents ...*Tensor) {
	t.op = op
	t.parents = parents
	t.isLeaf = false
	t.requiresGrad = true
}

// Grad returns the accumulated gradient tensor, or nil if none has
// been accumulated.
func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// SetGrad replaces the gradient tensor. Used internally by the
// autograd layer.
func (t *Tensor) SetGrad(g *Tensor) {
	t.grad = g
}

// ZeroGrad allocates the gradient buffer if absent and clears it.
// A no-op for tensors that do not require gradients.
func (t *Tensor) ZeroGrad() error {
	if !t.requiresGrad {
		return nil
	}
	if t.grad == nil {
		// The grad buffer always carries canonical dense strides.
		// Inheriting a view's strides would fold every broadcast
		// position of an expanded tensor onto the same storage slot.
		g, err := New(MustShape(t.shape.Dims()...), t.dtype)
		if err != nil {
			return err
		}
		t.grad = g
		return nil
	}
	t.grad.storage.Zero()
	return nil
}

// ClearGrad releases the gradient buffer, if any.
func (t *Tensor) ClearGrad() {
	if t.grad != nil {
		t.grad.Release()
		t.grad = nil
	}
}

// Release frees the gradient and parent links and drops the tensor's
// storage reference. The buffer itself is freed when the last
// referencing tensor releases it.
func (t *Tensor) Release() {
	t.ClearGrad()
	t.parents = nil
	if t.storage != nil {
		t.storage.Release()
		t.storage = nil
	}
}

// advance increments coords as a mixed-radix counter over dims,
// rightmost digit fastest.
func advance(coords, dims []int) {
	for d := len(dims) - 1; d >= 0; d-- {
		coords[d]++
		if coords[d] < dims[d] {
			return
		}
		coords[d] = 0
	}
}
