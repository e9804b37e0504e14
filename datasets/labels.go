package datasets

import (
	"encoding/csv"
	"os"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Default column names of the Kaggle Diabetic Retinopathy trainLabels.csv.
const (
	DefaultImageColumn = "image"
	DefaultLabelColumn = "level"
)

// LabelStore is the sample table of a dataset: row i of the label file is
// sample i. It is loaded once and never modified afterwards.
type LabelStore struct {
	path      string
	filenames []string
	labels    []int
}

// NewLabelStore reads the CSV file at path. imageCol names the column holding
// the sample file names (without extension) and labelCol the integer labels;
// empty names default to "image" and "level". Column names are matched after
// trimming spaces, case-insensitively. Cells are kept verbatim, except that
// spaces around labels are ignored. A file with only a header row yields an
// empty store.
//
// Any problem (missing file, missing column, non-integer label, empty file
// name) fails with a *LoadError.
func NewLabelStore(path, imageCol, labelCol string) (*LabelStore, error) {
	if imageCol == "" {
		imageCol = DefaultImageColumn
	}
	if labelCol == "" {
		labelCol = DefaultLabelColumn
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, &LoadError{Path: path, Err: errors.Wrap(err, "failed to parse CSV")}
	}
	if len(records) == 0 {
		return nil, &LoadError{Path: path, Err: errors.New("missing header row")}
	}
	imageName, err := findColumn(records[0], imageCol)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	labelName, err := findColumn(records[0], labelCol)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(records) == 1 {
		klog.Warningf("label file %s has no samples", path)
		return &LabelStore{path: path, filenames: []string{}, labels: []int{}}, nil
	}

	// Everything is read verbatim as strings: no cell is turned into NaN, and
	// the label column is converted explicitly so a malformed row is reported.
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil))
	if df.Err != nil {
		return nil, &LoadError{Path: path, Err: errors.Wrap(df.Err, "failed to load CSV records")}
	}

	filenames := df.Col(imageName).Records()
	for row, name := range filenames {
		if strings.TrimSpace(name) == "" {
			return nil, &LoadError{Path: path, Err: errors.Errorf("row %d: empty %q value", row, imageName)}
		}
	}
	cells := df.Col(labelName).Records()
	for i, cell := range cells {
		cells[i] = strings.TrimSpace(cell)
	}
	labels, err := series.New(cells, series.String, labelName).Int()
	if err != nil {
		return nil, &LoadError{Path: path, Err: errors.Wrapf(err, "column %q is not an integer label column", labelName)}
	}
	if len(labels) != len(filenames) {
		return nil, &LoadError{Path: path, Err: errors.Errorf("%d file names but %d labels", len(filenames), len(labels))}
	}

	klog.V(1).Infof("loaded %d samples from %s (columns %q, %q)", len(labels), path, imageName, labelName)
	return &LabelStore{
		path:      path,
		filenames: filenames,
		labels:    labels,
	}, nil
}

// findColumn returns the header name matching want.
func findColumn(names []string, want string) (string, error) {
	normalized := strings.TrimSpace(strings.ToLower(want))
	for _, name := range names {
		if strings.TrimSpace(strings.ToLower(name)) == normalized {
			return name, nil
		}
	}
	return "", errors.Errorf("required column %q not found in CSV (columns: %v)", want, names)
}

// Path of the label file the store was loaded from.
func (s *LabelStore) Path() string { return s.path }

// Len returns the number of samples.
func (s *LabelStore) Len() int { return len(s.labels) }

// Resolve returns the file name and label of sample idx.
func (s *LabelStore) Resolve(idx int) (filename string, label int, err error) {
	if idx < 0 || idx >= len(s.labels) {
		return "", 0, &IndexError{Index: idx, Len: len(s.labels)}
	}
	return s.filenames[idx], s.labels[idx], nil
}

// Filenames returns a copy of all sample file names, in index order.
func (s *LabelStore) Filenames() []string { return slices.Clone(s.filenames) }

// Labels returns a copy of all labels, in index order.
func (s *LabelStore) Labels() []int { return slices.Clone(s.labels) }

// LabelCounts returns how many samples carry each label.
func (s *LabelStore) LabelCounts() map[int]int {
	counts := make(map[int]int)
	for _, label := range s.labels {
		counts[label]++
	}
	return counts
}

// Classes returns the distinct labels, sorted.
func (s *LabelStore) Classes() []int {
	counts := s.LabelCounts()
	classes := make([]int, 0, len(counts))
	for label := range counts {
		classes = append(classes, label)
	}
	slices.Sort(classes)
	return classes
}
