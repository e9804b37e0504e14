package datasets

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Batch is one minibatch: Images[i] is the preprocessed image of sample
// Indices[i], whose label is Labels[i]. The caller owns it.
type Batch struct {
	// Images shaped [batch_size, channels, rows, cols].
	Images *tensors.Tensor

	// Labels aligned with the leading axis of Images.
	Labels []int

	// Indices of the samples, as passed to LoadBatch.
	Indices []int
}

// Len returns the number of samples in the batch.
func (b *Batch) Len() int { return len(b.Labels) }

// LabelsTensor returns the labels as an Int32 tensor shaped [batch_size].
func (b *Batch) LabelsTensor() *tensors.Tensor {
	labels := make([]int32, len(b.Labels))
	for i, label := range b.Labels {
		labels[i] = int32(label)
	}
	return tensors.FromValue(labels)
}

// BatchFlat accumulates a batch of examples in one contiguous buffer before
// it is converted to a tensor.
type BatchFlat struct {
	Buf      []float32
	Labels   []int
	Indices  []int
	Example  []int // Dimensions of a single example.
	exampleN int
	count    int
}

// NewBatchFlat allocates a buffer for batchSize examples shaped exampleDims.
func NewBatchFlat(batchSize int, exampleDims []int) *BatchFlat {
	n := 1
	for _, dim := range exampleDims {
		n *= dim
	}
	return &BatchFlat{
		Buf:      make([]float32, batchSize*n),
		Labels:   make([]int, 0, batchSize),
		Indices:  make([]int, 0, batchSize),
		Example:  slices.Clone(exampleDims),
		exampleN: n,
	}
}

// Append copies one example into the next free slot of the buffer.
func (b *BatchFlat) Append(index, label int, values []float32) error {
	if len(values) != b.exampleN {
		return errors.Errorf("example %d has %d values, expected %d (shape %v)", index, len(values), b.exampleN, b.Example)
	}
	if b.count*b.exampleN >= len(b.Buf) {
		return errors.Errorf("batch is full, can't append example %d", index)
	}
	copy(b.Buf[b.count*b.exampleN:], values)
	b.Labels = append(b.Labels, label)
	b.Indices = append(b.Indices, index)
	b.count++
	return nil
}

// Len returns the number of examples appended so far.
func (b *BatchFlat) Len() int { return b.count }

// ToBatch converts the accumulated examples to a Batch whose images have the
// given dtype.
func (b *BatchFlat) ToBatch(dtype dtypes.DType) (*Batch, error) {
	dims := append([]int{b.count}, b.Example...)
	images, err := toTensor(b.Buf[:b.count*b.exampleN], dtype, dims...)
	if err != nil {
		return nil, err
	}
	return &Batch{
		Images:  images,
		Labels:  b.Labels,
		Indices: b.Indices,
	}, nil
}

// toTensor casts values to dtype and builds a tensor with the given dimensions.
func toTensor(values []float32, dtype dtypes.DType, dims ...int) (*tensors.Tensor, error) {
	switch dtype {
	case dtypes.Float32:
		return tensors.FromFlatDataAndDimensions(values, dims...), nil
	case dtypes.Float64:
		return tensors.FromFlatDataAndDimensions(castValues(values, func(v float32) float64 { return float64(v) }), dims...), nil
	case dtypes.Float16:
		return tensors.FromFlatDataAndDimensions(castValues(values, float16.Fromfloat32), dims...), nil
	case dtypes.BFloat16:
		return tensors.FromFlatDataAndDimensions(castValues(values, bfloat16.FromFloat32), dims...), nil
	}
	return nil, errors.Errorf("dtype %s not supported for images", dtype)
}

func castValues[T any](values []float32, cast func(float32) T) []T {
	out := make([]T, len(values))
	for i, v := range values {
		out[i] = cast(v)
	}
	return out
}
