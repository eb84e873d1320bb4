// Package serialization persists ordered tensor collections, such as
// model parameters, in a compact binary container.
//
// Layout: a 4-byte magic, a little-endian uint32 format version, a
// length-prefixed CBOR header describing the model type and every
// tensor's dimensions and dtype, then the raw element payloads in
// little-endian order, one tensor after another.
package serialization

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/flintml/flint/tensor"
)

var magic = [4]byte{'F', 'L', 'N', 'T'}

// formatVersion is bumped on incompatible layout changes.
const formatVersion uint32 = 1

var (
	// ErrBadMagic indicates the stream does not start with the
	// container magic.
	ErrBadMagic = errors.New("not a flint tensor file")

	// ErrUnsupportedVersion indicates a container written by an
	// incompatible format revision.
	ErrUnsupportedVersion = errors.New("unsupported format version")

	// ErrModelMismatch indicates a container whose header does not
	// match the destination model.
	ErrModelMismatch = errors.New("model mismatch")
)

type tensorMeta struct {
	Dims  []int  `cbor:"dims"`
	DType string `cbor:"dtype"`
}

type header struct {
	ModelType string       `cbor:"model_type"`
	Tensors   []tensorMeta `cbor:"tensors"`
}

func parseDType(s string) (tensor.DataType, error) {
	switch s {
	case "int32":
		return tensor.Int32, nil
	case "float32":
		return tensor.Float32, nil
	case "float64":
		return tensor.Float64, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", s)
	}
}

// Save writes modelType and the tensors to w. Tensor order is
// preserved and is the contract between writer and reader.
func Save(w io.Writer, modelType string, tensors []*tensor.Tensor) error {
	hdr := header{ModelType: modelType, Tensors: make([]tensorMeta, len(tensors))}
	for i, t := range tensors {
		hdr.Tensors[i] = tensorMeta{
			Dims:  t.Shape().Dims(),
			DType: t.DType().String(),
		}
	}
	hdrBytes, err := cbor.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(hdrBytes))); err != nil {
		return err
	}
	if _, err := w.Write(hdrBytes); err != nil {
		return err
	}

	for i, t := range tensors {
		if err := writePayload(w, t); err != nil {
			return fmt.Errorf("tensor %d: %w", i, err)
		}
	}
	return nil
}

// SaveFile writes the container to path, truncating any existing file.
func SaveFile(path, modelType string, tensors []*tensor.Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Save(f, modelType, tensors); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writePayload streams a tensor's elements in logical row-major order.
func writePayload(w io.Writer, t *tensor.Tensor) error {
	c, err := t.Contiguous()
	if err != nil {
		return err
	}
	defer c.Release()

	switch c.DType() {
	case tensor.Int32:
		return binary.Write(w, binary.LittleEndian, c.AsInt32())
	case tensor.Float32:
		return binary.Write(w, binary.LittleEndian, c.AsFloat32())
	case tensor.Float64:
		return binary.Write(w, binary.LittleEndian, c.AsFloat64())
	default:
		return fmt.Errorf("unknown dtype %s", c.DType())
	}
}

// Load reads a container from r, returning the model type and freshly
// allocated tensors in their saved order.
func Load(r io.Reader) (string, []*tensor.Tensor, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return "", nil, err
	}

	tensors := make([]*tensor.Tensor, 0, len(hdr.Tensors))
	release := func() {
		for _, t := range tensors {
			t.Release()
		}
	}
	for i, meta := range hdr.Tensors {
		dtype, err := parseDType(meta.DType)
		if err != nil {
			release()
			return "", nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		shape, err := tensor.NewShape(meta.Dims...)
		if err != nil {
			release()
			return "", nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		t, err := tensor.New(shape, dtype)
		if err != nil {
			release()
			return "", nil, err
		}
		tensors = append(tensors, t)
		if err := readPayload(r, t); err != nil {
			release()
			return "", nil, fmt.Errorf("tensor %d: %w", i, err)
		}
	}
	return hdr.ModelType, tensors, nil
}

// LoadFile reads a container from path.
func LoadFile(path string) (string, []*tensor.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	return Load(f)
}

// LoadInto reads a container from r directly into dst, which must
// match the saved model type, tensor count, dimensions, and dtypes.
// Typical use is restoring a model's parameters in place.
func LoadInto(r io.Reader, modelType string, dst []*tensor.Tensor) error {
	hdr, err := readHeader(r)
	if err != nil {
		return err
	}
	if hdr.ModelType != modelType {
		return fmt.Errorf("%w: file holds %q, want %q", ErrModelMismatch, hdr.ModelType, modelType)
	}
	if len(hdr.Tensors) != len(dst) {
		return fmt.Errorf("%w: file holds %d tensors, want %d", ErrModelMismatch, len(hdr.Tensors), len(dst))
	}

	for i, meta := range hdr.Tensors {
		dtype, err := parseDType(meta.DType)
		if err != nil {
			return fmt.Errorf("tensor %d: %w", i, err)
		}
		if dtype != dst[i].DType() {
			return fmt.Errorf("%w: tensor %d dtype %s, want %s", ErrModelMismatch, i, dtype, dst[i].DType())
		}
		shape, err := tensor.NewShape(meta.Dims...)
		if err != nil {
			return fmt.Errorf("tensor %d: %w", i, err)
		}
		if !shape.Equal(dst[i].Shape()) {
			return fmt.Errorf("%w: tensor %d shape %v, want %v", ErrModelMismatch, i, shape, dst[i].Shape())
		}
		if err := readPayload(r, dst[i]); err != nil {
			return fmt.Errorf("tensor %d: %w", i, err)
		}
	}
	return nil
}

// LoadFileInto is LoadInto reading from path.
func LoadFileInto(path, modelType string, dst []*tensor.Tensor) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return LoadInto(f, modelType, dst)
}

func readHeader(r io.Reader) (header, error) {
	var hdr header

	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return hdr, err
	}
	if m != magic {
		return hdr, ErrBadMagic
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return hdr, err
	}
	if version != formatVersion {
		return hdr, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var hdrLen uint32
	if err := binary.Read(r, binary.LittleEndian, &hdrLen); err != nil {
		return hdr, err
	}
	hdrBytes := make([]byte, hdrLen)
	if _, err := io.ReadFull(r, hdrBytes); err != nil {
		return hdr, err
	}
	if err := cbor.Unmarshal(hdrBytes, &hdr); err != nil {
		return hdr, fmt.Errorf("decode header: %w", err)
	}
	return hdr, nil
}

// readPayload fills a freshly allocated contiguous tensor from r.
func readPayload(r io.Reader, t *tensor.Tensor) error {
	switch t.DType() {
	case tensor.Int32:
		return binary.Read(r, binary.LittleEndian, t.AsInt32())
	case tensor.Float32:
		return binary.Read(r, binary.LittleEndian, t.AsFloat32())
	case tensor.Float64:
		return binary.Read(r, binary.LittleEndian, t.AsFloat64())
	default:
		return fmt.Errorf("unknown dtype %s", t.DType())
	}
}
