package datasets

import (
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// ChannelOrder of the channel axis of preprocessed images.
type ChannelOrder int

const (
	// BGR reverses the decoded RGB channels, the order expected by models
	// trained with Caffe-style inputs. It is the default.
	BGR ChannelOrder = iota
	// RGB keeps the decoded order.
	RGB
)

func (o ChannelOrder) String() string {
	switch o {
	case BGR:
		return "BGR"
	case RGB:
		return "RGB"
	}
	return "Unknown"
}

// Defaults of the preprocessing policy.
const (
	DefaultShortSide = 256
	DefaultCropSize  = 224
	DefaultFilter    = "linear"
	DefaultExtension = ".jpeg"
)

// PreprocessConfig holds the parameters of the standard preprocessing policy.
// Zero values are replaced by the defaults.
type PreprocessConfig struct {
	// ShortSide is the length the smaller image side is rescaled to (default 256).
	ShortSide int `json:"short_side"`

	// CropSize of the square center crop (default 224).
	CropSize int `json:"crop_size"`

	// DType of the produced tensors (default Float32). Float64, Float16 and
	// BFloat16 are also supported.
	DType dtypes.DType `json:"-"`

	// ChannelOrder of the produced tensors (default BGR).
	ChannelOrder ChannelOrder `json:"-"`

	// Filter names the resampling filter used for resizing, see ParseFilter
	// (default "linear").
	Filter string `json:"filter"`
}

func (c PreprocessConfig) withDefaults() PreprocessConfig {
	if c.ShortSide == 0 {
		c.ShortSide = DefaultShortSide
	}
	if c.CropSize == 0 {
		c.CropSize = DefaultCropSize
	}
	if c.DType == dtypes.InvalidDType {
		c.DType = dtypes.Float32
	}
	if c.Filter == "" {
		c.Filter = DefaultFilter
	}
	return c
}

// Config of a KaggleDR dataset.
type Config struct {
	// Extension appended to the file names of the label file to find the
	// images, including the dot (default ".jpeg").
	Extension string `json:"extension"`

	// ImageColumn and LabelColumn of the label file (default "image" and "level").
	ImageColumn string `json:"image_column"`
	LabelColumn string `json:"label_column"`

	// Preprocess configures the standard preprocessing policy.
	Preprocess PreprocessConfig `json:"preprocess"`

	// Preprocessing, if set, replaces the standard policy and Preprocess is ignored.
	Preprocessing Preprocessing `json:"-"`
}

// DefaultConfig returns the configuration matching the Kaggle Diabetic
// Retinopathy data: trainLabels.csv with "image" and "level" columns and
// ".jpeg" images.
func DefaultConfig() Config {
	return Config{
		Extension:   DefaultExtension,
		ImageColumn: DefaultImageColumn,
		LabelColumn: DefaultLabelColumn,
		Preprocess:  PreprocessConfig{}.withDefaults(),
	}
}

func (c Config) withDefaults() Config {
	if c.Extension == "" {
		c.Extension = DefaultExtension
	} else if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	if c.ImageColumn == "" {
		c.ImageColumn = DefaultImageColumn
	}
	if c.LabelColumn == "" {
		c.LabelColumn = DefaultLabelColumn
	}
	c.Preprocess = c.Preprocess.withDefaults()
	return c
}

var supportedDTypes = map[string]dtypes.DType{
	"float32":  dtypes.Float32,
	"float64":  dtypes.Float64,
	"float16":  dtypes.Float16,
	"bfloat16": dtypes.BFloat16,
}

func isSupportedDType(dtype dtypes.DType) bool {
	for _, supported := range supportedDTypes {
		if dtype == supported {
			return true
		}
	}
	return false
}

// ParseDType converts "float32", "float64", "float16" or "bfloat16" (any case)
// to the corresponding dtype.
func ParseDType(name string) (dtypes.DType, error) {
	dtype, ok := supportedDTypes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return dtypes.InvalidDType, errors.Errorf("unsupported dtype %q", name)
	}
	return dtype, nil
}

// ParseChannelOrder converts "bgr" or "rgb" (any case).
func ParseChannelOrder(name string) (ChannelOrder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bgr":
		return BGR, nil
	case "rgb":
		return RGB, nil
	}
	return BGR, errors.Errorf("unknown channel order %q, expected \"bgr\" or \"rgb\"", name)
}

var filters = map[string]imaging.ResampleFilter{
	"nearest":    imaging.NearestNeighbor,
	"box":        imaging.Box,
	"linear":     imaging.Linear,
	"catmullrom": imaging.CatmullRom,
	"lanczos":    imaging.Lanczos,
	"gaussian":   imaging.Gaussian,
}

// ParseFilter returns the imaging resampling filter with the given name:
// "nearest", "box", "linear", "catmullrom", "lanczos" or "gaussian".
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	filter, ok := filters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return imaging.ResampleFilter{}, errors.Errorf("unknown resampling filter %q", name)
	}
	return filter, nil
}
