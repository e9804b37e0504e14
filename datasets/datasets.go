// Package datasets provides labeled image datasets that are read lazily from
// disk and handed to training loops as fixed-size minibatches of gomlx
// tensors.
//
// The label file (a CSV such as Kaggle's trainLabels.csv) is read once and
// maps each sample index to an image file name and an integer label. Images
// are only decoded when a batch that includes them is requested, preprocessed
// with a deterministic policy (see Preprocessor) and stacked into one tensor:
//
//	ds, err := datasets.NewKaggleDR("train/", "trainLabels.csv", datasets.DefaultConfig())
//	...
//	it, err := datasets.Iterate(ds, indices, 32, true)
//	for batch, err := range it.All() {
//		...
//	}
//
// Batches are shaped [batch_size, 3, 224, 224] by default, channels in BGR
// order, with the original 0-255 pixel magnitudes.
package datasets

// Dataset is the capability set required by Iterator: the number of samples
// and loading any selection of them as one batch. New data sources implement
// this interface.
type Dataset interface {
	// Len returns the number of samples, fixed for the lifetime of the dataset.
	Len() int

	// LoadBatch loads the samples at the given indices. The result has exactly
	// len(indices) examples, in the same order.
	LoadBatch(indices []int) (*Batch, error)
}
