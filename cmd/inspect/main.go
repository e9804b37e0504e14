// inspect loads a Kaggle Diabetic Retinopathy style dataset, reports its label
// distribution and walks one epoch of minibatches, checking that every image
// can be decoded and preprocessed.
//
// Usage:
//
//	go run ./cmd/inspect -data=~/kaggle/dr/train -labels=~/kaggle/dr/trainLabels.csv -batch=32
//
// Settings can also be given in a JSON file with -config; flags set explicitly
// on the command line take precedence over the file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/Noofbiz/kaggledr/datasets"
	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// options of one run. The JSON keys mirror the flag names.
type options struct {
	DataDir      string          `json:"data"`
	Labels       string          `json:"labels"`
	BatchSize    int             `json:"batch"`
	MaxBatches   int             `json:"max_batches"`
	Seed         int64           `json:"seed"`
	Shuffle      bool            `json:"shuffle"`
	DType        string          `json:"dtype"`
	ChannelOrder string          `json:"channel_order"`
	Chart        string          `json:"chart"`
	Dataset      datasets.Config `json:"dataset"`
}

func defaultOptions() options {
	return options{
		BatchSize:    32,
		Seed:         time.Now().UnixNano(),
		Shuffle:      true,
		DType:        "float32",
		ChannelOrder: "bgr",
		Dataset:      datasets.DefaultConfig(),
	}
}

var (
	flagConfig = flag.String("config", "", "path to a JSON file with the settings below (optional). "+
		"Flags set on the command line override it.")
	flagPrintConfig = flag.Bool("print-effective-config", false, "print the effective (JSON+flags) configuration and exit")
)

// registerFlags binds the flags to o, using its current values as defaults.
func registerFlags(o *options) {
	flag.StringVar(&o.DataDir, "data", o.DataDir, "directory with the images")
	flag.StringVar(&o.Labels, "labels", o.Labels, "label CSV file. If empty, the first CSV in the parent of -data is used")
	flag.IntVar(&o.BatchSize, "batch", o.BatchSize, "batch size")
	flag.IntVar(&o.MaxBatches, "max_batches", o.MaxBatches, "stop after this many batches (0 = whole epoch)")
	flag.Int64Var(&o.Seed, "seed", o.Seed, "random seed used to shuffle the indices")
	flag.BoolVar(&o.Shuffle, "shuffle", o.Shuffle, "shuffle the indices before batching")
	flag.StringVar(&o.DType, "dtype", o.DType, "dtype of the images: float32, float64, float16 or bfloat16")
	flag.StringVar(&o.ChannelOrder, "channel_order", o.ChannelOrder, "channel order of the images: bgr or rgb")
	flag.StringVar(&o.Chart, "chart", o.Chart, "if set, write a bar chart of the label distribution to this file (.png, .svg, .pdf)")
	flag.StringVar(&o.Dataset.Extension, "ext", o.Dataset.Extension, "extension of the image files")
	flag.StringVar(&o.Dataset.ImageColumn, "image_column", o.Dataset.ImageColumn, "column of the label file with the image names")
	flag.StringVar(&o.Dataset.LabelColumn, "label_column", o.Dataset.LabelColumn, "column of the label file with the labels")
	flag.IntVar(&o.Dataset.Preprocess.ShortSide, "short_side", o.Dataset.Preprocess.ShortSide, "images are resized so that their shorter side has this length")
	flag.IntVar(&o.Dataset.Preprocess.CropSize, "crop", o.Dataset.Preprocess.CropSize, "size of the square center crop")
	flag.StringVar(&o.Dataset.Preprocess.Filter, "filter", o.Dataset.Preprocess.Filter, "resampling filter: nearest, box, linear, catmullrom, lanczos or gaussian")
}

// loadOptions merges the defaults, the optional JSON file and the flags set on
// the command line, in this order of precedence (lowest first).
func loadOptions() (options, error) {
	opts := defaultOptions()
	registerFlags(&opts)
	flag.Parse()
	if *flagConfig == "" {
		return opts, nil
	}

	path, err := datasets.ExpandPath(*flagConfig)
	if err != nil {
		return opts, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Wrapf(err, "failed to read config %s", path)
	}
	setFlags := make(map[string]string)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = f.Value.String() })
	if err := json.Unmarshal(data, &opts); err != nil {
		return opts, errors.Wrapf(err, "failed to parse config %s", path)
	}
	// Flags are bound to the fields of opts: setting them again overrides the file.
	for name, value := range setFlags {
		if err := flag.Set(name, value); err != nil {
			return opts, errors.Wrapf(err, "failed to apply flag -%s", name)
		}
	}
	klog.V(1).Infof("loaded configuration from %s, %d flags override it", path, len(setFlags))
	return opts, nil
}

func main() {
	klog.InitFlags(nil)
	opts := must.M1(loadOptions())

	if *flagPrintConfig {
		out := must.M1(json.MarshalIndent(opts, "", "  "))
		fmt.Println(string(out))
		return
	}
	if opts.DataDir == "" {
		klog.Fatalf("-data must be set")
	}

	cfg := opts.Dataset
	cfg.Preprocess.DType = must.M1(datasets.ParseDType(opts.DType))
	cfg.Preprocess.ChannelOrder = must.M1(datasets.ParseChannelOrder(opts.ChannelOrder))
	dataDir := must.M1(datasets.ExpandPath(opts.DataDir))
	labelsPath := opts.Labels
	if labelsPath == "" {
		labelsPath = must.M1(datasets.FindCSV(filepath.Dir(filepath.Clean(dataDir))))
	}
	labelsPath = must.M1(datasets.ExpandPath(labelsPath))

	ds, err := datasets.NewKaggleDR(dataDir, labelsPath, cfg)
	if err != nil {
		klog.Fatalf("failed to open dataset: %+v", err)
	}
	reportLabels(ds.Labels())
	if opts.Chart != "" {
		chartPath := must.M1(datasets.ExpandPath(opts.Chart))
		must.M(datasets.WriteLabelChart(ds.Labels(), chartPath))
		fmt.Printf("Label chart written to %s\n", chartPath)
	}

	var rng *rand.Rand
	if opts.Shuffle {
		rng = rand.New(rand.NewSource(opts.Seed))
	}
	it, err := datasets.NewIterator(ds, datasets.AllIndices(ds.Len()), opts.BatchSize, rng)
	if err != nil {
		klog.Fatalf("failed to create iterator: %+v", err)
	}
	numBatches := it.NumBatches()
	if opts.MaxBatches > 0 {
		numBatches = min(numBatches, opts.MaxBatches)
	}
	if err := walk(it, numBatches); err != nil {
		klog.Fatalf("%+v", err)
	}
}

// reportLabels prints the number of samples per label.
func reportLabels(store *datasets.LabelStore) {
	fmt.Printf("Labels from %s: %s samples\n", store.Path(), humanize.Comma(int64(store.Len())))
	counts := store.LabelCounts()
	for _, label := range store.Classes() {
		fmt.Printf("\tlabel %d: %s samples (%.1f%%)\n", label, humanize.Comma(int64(counts[label])),
			100*float64(counts[label])/float64(store.Len()))
	}
}

// walk loads numBatches batches from it, reporting the shape of the batches
// and the throughput.
func walk(it *datasets.Iterator, numBatches int) error {
	if numBatches == 0 {
		fmt.Println("Not enough samples for a single batch.")
		return nil
	}
	bar := progressbar.NewOptions(numBatches,
		progressbar.OptionSetDescription("Loading batches"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("batches"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
	start := time.Now()
	var totalBytes uint64
	labelsSeen := make(map[int]int)
	for count := 0; count < numBatches; count++ {
		batch, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = bar.Clear()
			return err
		}
		if count == 0 {
			fmt.Printf("\nFirst batch: images %s, labels %v\n", batch.Images.Shape(), batch.Labels)
		}
		totalBytes += uint64(batch.Images.Shape().Memory())
		for _, label := range batch.Labels {
			labelsSeen[label]++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	elapsed := time.Since(start)
	classes := make([]int, 0, len(labelsSeen))
	for label := range labelsSeen {
		classes = append(classes, label)
	}
	slices.Sort(classes)
	fmt.Printf("Loaded %d batches (%s of images) in %s, %s/s\n", numBatches, humanize.Bytes(totalBytes),
		elapsed.Round(time.Millisecond), humanize.Bytes(uint64(float64(totalBytes)/elapsed.Seconds())))
	for _, label := range classes {
		fmt.Printf("\tlabel %d: %d samples in the loaded batches\n", label, labelsSeen[label])
	}
	return nil
}
