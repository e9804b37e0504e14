package datasets

import (
	"io"
	"iter"
	"math/rand"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Iterator yields consecutive, non-overlapping windows of batchSize indices
// as batches loaded by a Dataset. The last len(indices) % batchSize indices
// are never yielded.
//
// An Iterator is single use: once it returns io.EOF (or any error) it stays
// exhausted. Create a new one to go over the data again. It is not safe for
// concurrent use.
type Iterator struct {
	ds        Dataset
	indices   []int
	batchSize int
	pos       int
	err       error // Terminal error, io.EOF when exhausted.
}

// Iterate returns an Iterator over indices in windows of batchSize.
//
// If shuffle is true, indices is permuted in place with math/rand's global
// generator before the first batch: the caller's slice is modified. Seed the
// global generator (or use NewIterator with a *rand.Rand) for reproducible
// orders.
func Iterate(ds Dataset, indices []int, batchSize int, shuffle bool) (*Iterator, error) {
	var shuffleFn func(n int, swap func(i, j int))
	if shuffle {
		shuffleFn = rand.Shuffle
	}
	return newIterator(ds, indices, batchSize, shuffleFn)
}

// NewIterator is like Iterate, but shuffles indices in place with rng. If rng
// is nil indices are used in the given order.
func NewIterator(ds Dataset, indices []int, batchSize int, rng *rand.Rand) (*Iterator, error) {
	var shuffleFn func(n int, swap func(i, j int))
	if rng != nil {
		shuffleFn = rng.Shuffle
	}
	return newIterator(ds, indices, batchSize, shuffleFn)
}

func newIterator(ds Dataset, indices []int, batchSize int, shuffleFn func(n int, swap func(i, j int))) (*Iterator, error) {
	if ds == nil {
		return nil, errors.New("nil dataset")
	}
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	if shuffleFn != nil {
		shuffleFn(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}
	it := &Iterator{
		ds:        ds,
		indices:   indices,
		batchSize: batchSize,
	}
	if dropped := len(indices) % batchSize; dropped > 0 {
		klog.V(1).Infof("iterating %d indices in batches of %d: last %d indices are dropped", len(indices), batchSize, dropped)
	}
	return it, nil
}

// NumBatches returns the total number of batches the iterator yields,
// len(indices) / batchSize.
func (it *Iterator) NumBatches() int { return len(it.indices) / it.batchSize }

// Remaining returns the number of batches not yet yielded.
func (it *Iterator) Remaining() int {
	if it.err != nil {
		return 0
	}
	return (len(it.indices) - it.pos) / it.batchSize
}

// Next loads and returns the next batch. It returns io.EOF when there are no
// more full windows. Errors from the dataset end the iteration: they are
// returned again by every following call.
func (it *Iterator) Next() (*Batch, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.pos+it.batchSize > len(it.indices) {
		it.err = io.EOF
		return nil, it.err
	}
	window := it.indices[it.pos : it.pos+it.batchSize]
	it.pos += it.batchSize
	batch, err := it.ds.LoadBatch(window)
	if err != nil {
		it.err = errors.WithMessagef(err, "batch %d", it.pos/it.batchSize-1)
		return nil, it.err
	}
	return batch, nil
}

// All returns the remaining batches as a sequence, to be used with range.
// Iteration stops after the first error, which is yielded with a nil batch.
// io.EOF is not yielded.
func (it *Iterator) All() iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		for {
			batch, err := it.Next()
			if err == io.EOF {
				return
			}
			if !yield(batch, err) || err != nil {
				return
			}
		}
	}
}
