package datasets

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// NumChannels of every preprocessed image. Grayscale images are replicated to
// three channels and any alpha channel is dropped.
const NumChannels = 3

// Preprocessing converts one decoded image into the values of one example.
// Implementations must be deterministic, since batches are rebuilt from
// scratch every time.
type Preprocessing interface {
	// Pixels returns the flat (row-major) values for img, shaped
	// OutputDimensions().
	Pixels(img image.Image) ([]float32, error)

	// OutputDimensions of one example.
	OutputDimensions() []int

	// DType the values are cast to when stacked into a batch.
	DType() dtypes.DType
}

// Preprocessor is the standard policy: rescale so the short side has
// ShortSide pixels, center crop to CropSize x CropSize, move channels first,
// optionally reverse them to BGR and cast to DType. Pixel values keep their
// 0-255 magnitude, no mean is subtracted.
type Preprocessor struct {
	config PreprocessConfig
	filter imaging.ResampleFilter
}

var _ Preprocessing = (*Preprocessor)(nil)

// NewPreprocessor validates config (zero fields take the defaults) and
// returns the corresponding Preprocessor.
func NewPreprocessor(config PreprocessConfig) (*Preprocessor, error) {
	config = config.withDefaults()
	if config.ShortSide <= 0 || config.CropSize <= 0 {
		return nil, errors.Errorf("invalid preprocessing sizes: short side %d, crop %d", config.ShortSide, config.CropSize)
	}
	if config.CropSize > config.ShortSide {
		return nil, errors.Errorf("crop size %d larger than the resized short side %d", config.CropSize, config.ShortSide)
	}
	if !isSupportedDType(config.DType) {
		return nil, errors.Errorf("preprocessing dtype %s not supported", config.DType)
	}
	if config.ChannelOrder != RGB && config.ChannelOrder != BGR {
		return nil, errors.Errorf("invalid channel order %d", config.ChannelOrder)
	}
	filter, err := ParseFilter(config.Filter)
	if err != nil {
		return nil, err
	}
	return &Preprocessor{config: config, filter: filter}, nil
}

// Config returns the effective configuration, defaults included.
func (p *Preprocessor) Config() PreprocessConfig { return p.config }

// OutputDimensions implements Preprocessing.
func (p *Preprocessor) OutputDimensions() []int {
	return []int{NumChannels, p.config.CropSize, p.config.CropSize}
}

// DType implements Preprocessing.
func (p *Preprocessor) DType() dtypes.DType { return p.config.DType }

// Preprocess applies the policy to img and returns a tensor shaped
// [3, CropSize, CropSize] with the configured dtype.
func (p *Preprocessor) Preprocess(img image.Image) (*tensors.Tensor, error) {
	values, err := p.Pixels(img)
	if err != nil {
		return nil, err
	}
	return toTensor(values, p.config.DType, p.OutputDimensions()...)
}

// Pixels implements Preprocessing: it runs the policy up to, but not
// including, the dtype cast.
func (p *Preprocessor) Pixels(img image.Image) ([]float32, error) {
	size := img.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Errorf("cannot preprocess empty image of size %s", size)
	}
	if !isRGBModel(img.ColorModel()) {
		klog.V(2).Infof("converting image with color model %T to %d channels", img.ColorModel(), NumChannels)
	}
	resized := ResizeShortSide(img, p.config.ShortSide, p.filter)
	cropped, err := CenterCrop(resized, p.config.CropSize)
	if err != nil {
		return nil, err
	}
	values := ChannelsFirst(cropped)
	if p.config.ChannelOrder == BGR {
		ReverseChannels(values, NumChannels)
	}
	return values, nil
}

// ResizeShortSide rescales img so its smaller side becomes shortSide pixels,
// preserving the aspect ratio with integer (floor) arithmetic. Images smaller
// than shortSide are upscaled.
func ResizeShortSide(img image.Image, shortSide int, filter imaging.ResampleFilter) *image.NRGBA {
	size := img.Bounds().Size()
	h, w := size.Y, size.X
	var rows, cols int
	if h < w {
		rows, cols = shortSide, w*shortSide/h
	} else {
		rows, cols = h*shortSide/w, shortSide
	}
	return imaging.Resize(img, cols, rows, filter)
}

// CenterCrop takes the middle cropSize rows and columns of img. The top-left
// corner is at (rows/2 - cropSize/2, cols/2 - cropSize/2).
func CenterCrop(img image.Image, cropSize int) (*image.NRGBA, error) {
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	if h < cropSize || w < cropSize {
		return nil, errors.Errorf("cannot crop %dx%d from image of size %dx%d", cropSize, cropSize, w, h)
	}
	top := h/2 - cropSize/2
	left := w/2 - cropSize/2
	rect := image.Rect(left, top, left+cropSize, top+cropSize).Add(bounds.Min)
	return imaging.Crop(img, rect), nil
}

// ChannelsFirst transposes img from (rows, cols, channels) to a flat
// (channels, rows, cols) slice of its R, G and B values.
func ChannelsFirst(img *image.NRGBA) []float32 {
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()
	plane := h * w
	values := make([]float32, NumChannels*plane)
	for y := 0; y < h; y++ {
		off := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		row := img.Pix[off : off+4*w]
		for x := 0; x < w; x++ {
			pos := y*w + x
			for c := 0; c < NumChannels; c++ {
				values[c*plane+pos] = float32(row[4*x+c])
			}
		}
	}
	return values
}

// ReverseChannels reverses, in place, the order of the channel planes of a
// flat channels-first slice: RGB becomes BGR and vice versa.
func ReverseChannels(values []float32, channels int) {
	plane := len(values) / channels
	for lo, hi := 0, channels-1; lo < hi; lo, hi = lo+1, hi-1 {
		a := values[lo*plane : (lo+1)*plane]
		b := values[hi*plane : (hi+1)*plane]
		for i := range a {
			a[i], b[i] = b[i], a[i]
		}
	}
}

func isRGBModel(model color.Model) bool {
	switch model {
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model, color.YCbCrModel, color.CMYKModel:
		return true
	}
	return false
}
