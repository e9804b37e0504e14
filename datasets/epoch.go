package datasets

import (
	"math/rand"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// EpochDataset adapts a Dataset to gomlx's train.Dataset: each epoch is one
// pass of an Iterator over the selected indices, and Reset starts a new one.
//
// Unlike Iterate, it shuffles a private copy of the indices, so the slice
// given to NewEpochDataset is never modified.
type EpochDataset struct {
	name      string
	ds        Dataset
	indices   []int
	batchSize int
	rng       *rand.Rand

	it  *Iterator
	err error // Set when Reset fails, returned by Yield.
}

var _ train.Dataset = (*EpochDataset)(nil)

// NewEpochDataset creates a train.Dataset yielding batches of batchSize
// samples of ds taken from indices. If rng is not nil the order is reshuffled
// at every epoch.
func NewEpochDataset(name string, ds Dataset, indices []int, batchSize int, rng *rand.Rand) (*EpochDataset, error) {
	if len(indices) < batchSize {
		return nil, errors.Errorf("dataset %q: %d indices can't fill a single batch of %d", name, len(indices), batchSize)
	}
	eds := &EpochDataset{
		name:      name,
		ds:        ds,
		indices:   slices.Clone(indices),
		batchSize: batchSize,
		rng:       rng,
	}
	it, err := NewIterator(ds, eds.indices, batchSize, rng)
	if err != nil {
		return nil, err
	}
	eds.it = it
	return eds, nil
}

// Name implements train.Dataset.
func (eds *EpochDataset) Name() string { return eds.name }

// NumBatches returns the number of batches in one epoch.
func (eds *EpochDataset) NumBatches() int { return len(eds.indices) / eds.batchSize }

// Reset implements train.Dataset: it starts a new epoch. If the new epoch
// can't be set up, the error is returned by the following calls to Yield.
func (eds *EpochDataset) Reset() {
	eds.it, eds.err = NewIterator(eds.ds, eds.indices, eds.batchSize, eds.rng)
	if eds.err != nil {
		eds.err = errors.WithMessagef(eds.err, "dataset %q: failed to reset", eds.name)
	}
}

// Yield implements train.Dataset. It returns:
//
//   - spec: the EpochDataset itself.
//   - inputs: the images, shaped [batch_size, channels, rows, cols].
//   - labels: the labels as Int32, shaped [batch_size].
//
// At the end of the epoch it returns io.EOF.
func (eds *EpochDataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if eds.err != nil {
		return nil, nil, nil, eds.err
	}
	batch, err := eds.it.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	spec = eds
	inputs = []*tensors.Tensor{batch.Images}
	labels = []*tensors.Tensor{batch.LabelsTensor()}
	return
}
