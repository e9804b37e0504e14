package datasets

import (
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	// Extra decoders, on top of the jpeg, png, gif, bmp and tiff ones
	// registered by imaging.
	_ "golang.org/x/image/webp"
)

// KaggleDR provides access to the images of Kaggle's Diabetic Retinopathy
// competition (or any data laid out the same way): a label file listing image
// names and integer labels, and a directory with one image per sample.
//
// Images are read only when a batch needs them and nothing is cached, so
// repeated indices redo the whole decode and preprocessing.
type KaggleDR struct {
	// DataDir holds the images, named {filename}{Extension}.
	DataDir string

	config      Config
	labels      *LabelStore
	prepro      Preprocessing
	exampleDims []int
}

var _ Dataset = (*KaggleDR)(nil)

// NewKaggleDR loads the label file at labelsPath and returns a dataset reading
// images from dataDir. Zero fields of cfg take the values of DefaultConfig.
//
// It fails with a *LoadError if the label file can't be loaded.
func NewKaggleDR(dataDir, labelsPath string, cfg Config) (*KaggleDR, error) {
	cfg = cfg.withDefaults()
	prepro := cfg.Preprocessing
	if prepro == nil {
		p, err := NewPreprocessor(cfg.Preprocess)
		if err != nil {
			return nil, err
		}
		prepro = p
	}
	if !isSupportedDType(prepro.DType()) {
		return nil, errors.Errorf("preprocessing dtype %s not supported", prepro.DType())
	}

	labels, err := NewLabelStore(labelsPath, cfg.ImageColumn, cfg.LabelColumn)
	if err != nil {
		return nil, err
	}
	ds := &KaggleDR{
		DataDir:     dataDir,
		config:      cfg,
		labels:      labels,
		prepro:      prepro,
		exampleDims: prepro.OutputDimensions(),
	}
	klog.V(1).Infof("%s: %d samples in %s, examples shaped %v (%s)",
		ds.Name(), ds.Len(), dataDir, ds.exampleDims, prepro.DType())
	return ds, nil
}

// Name returns the name of the dataset.
func (ds *KaggleDR) Name() string { return "KaggleDR" }

// Len returns the number of samples in the entire dataset.
func (ds *KaggleDR) Len() int { return ds.labels.Len() }

// Labels returns the label store of the dataset.
func (ds *KaggleDR) Labels() *LabelStore { return ds.labels }

// Config returns the effective configuration, defaults included.
func (ds *KaggleDR) Config() Config { return ds.config }

// ExampleDimensions of one preprocessed image, usually [3, 224, 224].
func (ds *KaggleDR) ExampleDimensions() []int { return append([]int(nil), ds.exampleDims...) }

// ImagePath returns the path of the image for the given file name, as listed in
// the label file.
func (ds *KaggleDR) ImagePath(filename string) string {
	return filepath.Join(ds.DataDir, filename+ds.config.Extension)
}

// LoadImage decodes the image with the given file name. Failures are reported
// as a *DecodeError.
func (ds *KaggleDR) LoadImage(filename string) (image.Image, error) {
	path := ds.ImagePath(filename)
	img, err := imaging.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

// example loads and preprocesses sample idx.
func (ds *KaggleDR) example(idx int) (values []float32, label int, err error) {
	filename, label, err := ds.labels.Resolve(idx)
	if err != nil {
		return nil, 0, err
	}
	img, err := ds.LoadImage(filename)
	if err != nil {
		return nil, 0, err
	}
	values, err = ds.prepro.Pixels(img)
	if err != nil {
		return nil, 0, &DecodeError{Path: ds.ImagePath(filename), Err: errors.Wrap(err, "preprocessing failed")}
	}
	return values, label, nil
}

// Example returns the preprocessed image of sample idx, shaped like
// ExampleDimensions, and its label.
func (ds *KaggleDR) Example(idx int) (*tensors.Tensor, int, error) {
	values, label, err := ds.example(idx)
	if err != nil {
		return nil, 0, err
	}
	t, err := toTensor(values, ds.prepro.DType(), ds.exampleDims...)
	if err != nil {
		return nil, 0, err
	}
	return t, label, nil
}

// LoadBatch implements Dataset. indices are absolute, they refer to rows of the
// label file. Batch.Labels[i] is the label of indices[i] and the i-th image of
// Batch.Images its preprocessed image.
//
// An empty selection yields a batch whose leading dimension is 0. The first
// failure (*IndexError, *DecodeError) aborts the whole batch.
func (ds *KaggleDR) LoadBatch(indices []int) (*Batch, error) {
	flat := NewBatchFlat(len(indices), ds.exampleDims)
	for _, idx := range indices {
		values, label, err := ds.example(idx)
		if err != nil {
			return nil, err
		}
		if err := flat.Append(idx, label, values); err != nil {
			return nil, errors.Wrapf(err, "%s: preprocessing returned an example of the wrong size", ds.Name())
		}
	}
	batch, err := flat.ToBatch(ds.prepro.DType())
	if err != nil {
		return nil, err
	}
	if batch.Len() != len(indices) {
		return nil, errors.Errorf("%s: batch has %d examples for %d indices", ds.Name(), batch.Len(), len(indices))
	}
	klog.V(2).Infof("%s: loaded batch of %d examples", ds.Name(), batch.Len())
	return batch, nil
}
