package types

import (
	"fmt"

	"github.com/DuckSoft/gradir/internal/util"
)

// Type represents the type of a graph value.
type Type interface {
	fmt.Stringer
	isType()
	// Equals returns true if this type is equal to the other type
	Equals(other Type) bool
}

// TensorType represents a dense tensor value. Zero is the structural-zero
// flag: nil when nothing is known, otherwise the known answer.
type TensorType struct {
	Zero *bool
}

func (t *TensorType) isType() {}

func (t *TensorType) String() string {
	switch {
	case t.Zero == nil:
		return "tensor"
	case *t.Zero:
		return "tensor<zero>"
	default:
		return "tensor<nonzero>"
	}
}

func (t *TensorType) Equals(other Type) bool {
	o, ok := other.(*TensorType)
	if !ok {
		return false
	}
	if t.Zero == nil || o.Zero == nil {
		return t.Zero == nil && o.Zero == nil
	}
	return *t.Zero == *o.Zero
}

// TensorListType represents a homogeneous list of tensors.
type TensorListType struct{}

func (l *TensorListType) isType() {}

func (l *TensorListType) String() string {
	return "tensor[]"
}

func (l *TensorListType) Equals(other Type) bool {
	_, ok := other.(*TensorListType)
	return ok
}

// ScalarType represents any non-tensor value, named after its source
// spelling (int, float, bool, ...).
type ScalarType struct {
	Name string
}

func (s *ScalarType) isType() {}

func (s *ScalarType) String() string {
	return s.Name
}

func (s *ScalarType) Equals(other Type) bool {
	if otherScalar, ok := other.(*ScalarType); ok {
		return s.Name == otherScalar.Name
	}
	return false
}

// Helper functions for creating common types

// NewTensor creates a tensor type with the structural-zero flag unset.
func NewTensor() *TensorType {
	return &TensorType{}
}

// NewZeroTensor creates a tensor type known to be a structural zero.
func NewZeroTensor() *TensorType {
	return &TensorType{Zero: util.BoolPtr(true)}
}

// NewNonzeroTensor creates a tensor type known not to be a structural zero.
func NewNonzeroTensor() *TensorType {
	return &TensorType{Zero: util.BoolPtr(false)}
}

// NewTensorList creates a list-of-tensors type.
func NewTensorList() *TensorListType {
	return &TensorListType{}
}

// NewScalar creates a scalar type with the given name.
func NewScalar(name string) *ScalarType {
	return &ScalarType{Name: name}
}

// Common types. These are immutable and safe to share across graphs.
var (
	Tensor        = NewTensor()
	ZeroTensor    = NewZeroTensor()
	NonzeroTensor = NewNonzeroTensor()
	TensorList    = NewTensorList()
	Int           = NewScalar("int")
	Float         = NewScalar("float")
	Bool          = NewScalar("bool")
)
