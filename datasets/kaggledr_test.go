package datasets

import (
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKaggleDR_EndToEnd iterates over a two image dataset in a single batch.
func TestKaggleDR_EndToEnd(t *testing.T) {
	dataDir, labelsPath := kdrFixture(t)
	ds, err := NewKaggleDR(dataDir, labelsPath, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, []int{3, 224, 224}, ds.ExampleDimensions())

	it, err := Iterate(ds, []int{0, 1}, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 1, it.NumBatches())

	batch, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 224, 224}, batch.Images.Shape().Dimensions)
	assert.Equal(t, dtypes.Float32, batch.Images.DType())
	assert.Equal(t, []int{0, 2}, batch.Labels)
	assert.Equal(t, []int{0, 1}, batch.Indices)
	assert.Equal(t, []int32{0, 2}, batch.LabelsTensor().Value())

	// Images are aligned with labels: img1 is red and img2 is blue. In BGR
	// order red is the last channel.
	images := batch.Images.Value().([][][][]float32)
	assert.InDelta(t, 220, images[0][2][112][112], 8)
	assert.InDelta(t, 30, images[0][0][112][112], 8)
	assert.InDelta(t, 220, images[1][0][112][112], 8)
	assert.InDelta(t, 30, images[1][2][112][112], 8)

	_, err = it.Next()
	assert.Equal(t, io.EOF, err)
}

func TestKaggleDR_BelowOneBatch(t *testing.T) {
	dataDir, labelsPath := kdrFixture(t)
	ds, err := NewKaggleDR(dataDir, labelsPath, DefaultConfig())
	require.NoError(t, err)

	it, err := Iterate(ds, []int{0}, 2, false)
	require.NoError(t, err)
	count := 0
	for _, err := range it.All() {
		require.NoError(t, err)
		count++
	}
	assert.Zero(t, count)
}

func TestKaggleDR_LoadBatchAlignment(t *testing.T) {
	dataDir, labelsPath := kdrFixture(t)
	ds, err := NewKaggleDR(dataDir, labelsPath, DefaultConfig())
	require.NoError(t, err)

	// Repeated and reordered indices are loaded again each time.
	indices := []int{1, 0, 1}
	batch, err := ds.LoadBatch(indices)
	require.NoError(t, err)
	require.Equal(t, len(indices), batch.Len())
	assert.Equal(t, []int{2, 0, 2}, batch.Labels)
	assert.Equal(t, 3, batch.Images.Shape().Dimensions[0])

	for i, idx := range indices {
		_, label, err := ds.Labels().Resolve(idx)
		require.NoError(t, err)
		assert.Equal(t, label, batch.Labels[i])
	}

	images := batch.Images.Value().([][][][]float32)
	assert.Equal(t, images[0], images[2])
}

func TestKaggleDR_EmptySelection(t *testing.T) {
	dataDir, labelsPath := kdrFixture(t)
	ds, err := NewKaggleDR(dataDir, labelsPath, DefaultConfig())
	require.NoError(t, err)

	for _, indices := range [][]int{nil, {}} {
		batch, err := ds.LoadBatch(indices)
		require.NoError(t, err)
		assert.Equal(t, 0, batch.Len())
		assert.Equal(t, []int{0, 3, 224, 224}, batch.Images.Shape().Dimensions)
		assert.Equal(t, dtypes.Float32, batch.Images.DType())
		assert.Empty(t, batch.Labels)
		assert.Empty(t, batch.Indices)
	}
}

func TestKaggleDR_Example(t *testing.T) {
	dataDir, labelsPath := kdrFixture(t)
	ds, err := NewKaggleDR(dataDir, labelsPath, DefaultConfig())
	require.NoError(t, err)

	example, label, err := ds.Example(1)
	require.NoError(t, err)
	assert.Equal(t, 2, label)
	assert.Equal(t, []int{3, 224, 224}, example.Shape().Dimensions)

	_, _, err = ds.Example(2)
	var indexErr *IndexError
	require.True(t, errors.As(err, &indexErr), "expected IndexError, got %v", err)
}

func TestKaggleDR_Errors(t *testing.T) {
	dataDir, labelsPath := kdrFixture(t)
	ds, err := NewKaggleDR(dataDir, labelsPath, DefaultConfig())
	require.NoError(t, err)

	t.Run("index out of range", func(t *testing.T) {
		batch, err := ds.LoadBatch([]int{0, 5})
		assert.Nil(t, batch)
		var indexErr *IndexError
		require.True(t, errors.As(err, &indexErr), "expected IndexError, got %v", err)
		assert.Equal(t, 5, indexErr.Index)
	})

	t.Run("missing image", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dataDir, "img2.jpeg")))
		batch, err := ds.LoadBatch([]int{0, 1})
		assert.Nil(t, batch)
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr), "expected DecodeError, got %v", err)
		assert.Equal(t, ds.ImagePath("img2"), decodeErr.Path)
	})

	t.Run("corrupt image", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, "img2.jpeg"), []byte("not really a jpeg"), 0644))
		_, err := ds.LoadBatch([]int{1})
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr), "expected DecodeError, got %v", err)
	})

	t.Run("iterator stops at the failure", func(t *testing.T) {
		it, err := Iterate(ds, []int{0, 0, 1, 0}, 2, false)
		require.NoError(t, err)
		_, err = it.Next()
		require.NoError(t, err)
		_, err = it.Next()
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr), "expected DecodeError, got %v", err)
		_, again := it.Next()
		assert.Equal(t, err, again)
	})
}

func TestKaggleDR_LabelFileErrors(t *testing.T) {
	dataDir, _ := kdrFixture(t)
	_, err := NewKaggleDR(dataDir, filepath.Join(dataDir, "missing.csv"), DefaultConfig())
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr), "expected LoadError, got %v", err)
}

func TestKaggleDR_Config(t *testing.T) {
	tmp := t.TempDir()
	labelsPath := filepath.Join(tmp, "labels.csv")
	writeCSV(t, labelsPath, "file,grade", []string{"a,3", "b,1", "c,0"})
	for _, name := range []string{"a", "b", "c"} {
		writePNG(t, filepath.Join(tmp, name+".png"), gradientImage(80, 60))
	}

	ds, err := NewKaggleDR(tmp, labelsPath, Config{
		Extension:   "png",
		ImageColumn: "file",
		LabelColumn: "grade",
		Preprocess:  PreprocessConfig{ShortSide: 40, CropSize: 32, DType: dtypes.Float64, ChannelOrder: RGB},
	})
	require.NoError(t, err)
	assert.Equal(t, ".png", ds.Config().Extension)
	assert.Equal(t, filepath.Join(tmp, "b.png"), ds.ImagePath("b"))

	batch, err := ds.LoadBatch([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 32, 32}, batch.Images.Shape().Dimensions)
	assert.Equal(t, dtypes.Float64, batch.Images.DType())
	assert.Equal(t, []int{0, 3}, batch.Labels)
}

// constPreprocessing maps every image to a [1, 2, 2] example filled with its width.
type constPreprocessing struct{}

func (constPreprocessing) Pixels(img image.Image) ([]float32, error) {
	w := float32(img.Bounds().Dx())
	return []float32{w, w, w, w}, nil
}
func (constPreprocessing) OutputDimensions() []int { return []int{1, 2, 2} }
func (constPreprocessing) DType() dtypes.DType     { return dtypes.Float32 }

func TestKaggleDR_CustomPreprocessing(t *testing.T) {
	dataDir, labelsPath := kdrFixture(t)
	ds, err := NewKaggleDR(dataDir, labelsPath, Config{Preprocessing: constPreprocessing{}})
	require.NoError(t, err)

	batch, err := ds.LoadBatch([]int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 2, 2}, batch.Images.Shape().Dimensions)
	assert.Equal(t, [][][][]float32{
		{{{400, 400}, {400, 400}}},
		{{{400, 400}, {400, 400}}},
	}, batch.Images.Value())
}

// badPreprocessing returns examples of the wrong size.
type badPreprocessing struct{ constPreprocessing }

func (badPreprocessing) OutputDimensions() []int { return []int{3, 2, 2} }

func TestKaggleDR_WrongExampleSize(t *testing.T) {
	dataDir, labelsPath := kdrFixture(t)
	ds, err := NewKaggleDR(dataDir, labelsPath, Config{Preprocessing: badPreprocessing{}})
	require.NoError(t, err)
	_, err = ds.LoadBatch([]int{0})
	require.Error(t, err)
}

// The image decoders registered for LoadImage also cover grayscale files.
func TestKaggleDR_GrayscaleFile(t *testing.T) {
	tmp := t.TempDir()
	labelsPath := filepath.Join(tmp, "labels.csv")
	writeCSV(t, labelsPath, "image,level", []string{"g,1"})
	gray := image.NewGray(image.Rect(0, 0, 300, 300))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}
	writePNG(t, filepath.Join(tmp, "g.png"), gray)

	ds, err := NewKaggleDR(tmp, labelsPath, Config{Extension: ".png"})
	require.NoError(t, err)
	batch, err := ds.LoadBatch([]int{0})
	require.NoError(t, err)
	images := batch.Images.Value().([][][][]float32)
	for c := 0; c < 3; c++ {
		assert.InDelta(t, 128, images[0][c][10][10], 1)
	}
}
