package datasets

import (
	"path/filepath"
	"strings"

	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// AllIndices returns [0, 1, ..., n-1], the selection of a whole dataset.
func AllIndices(n int) []int {
	indices := make([]int, n)
	for i := range n {
		indices[i] = i
	}
	return indices
}

// DefaultLabelFile is the name of the label file of the Kaggle training set.
const DefaultLabelFile = "trainLabels.csv"

// FindCSV returns the label file in dir: DefaultLabelFile (in any case) if
// present, otherwise the first CSV file in lexical order.
func FindCSV(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return "", errors.Wrapf(err, "failed to list CSV files in %s", dir)
	}
	if len(matches) == 0 {
		return "", errors.Errorf("no CSV files found in %s", dir)
	}
	for _, match := range matches {
		if strings.EqualFold(filepath.Base(match), DefaultLabelFile) {
			return match, nil
		}
	}
	if len(matches) > 1 {
		klog.Warningf("%d CSV files in %s and none is %s, using %s", len(matches), dir, DefaultLabelFile, matches[0])
	}
	return matches[0], nil
}

// ExpandPath replaces a leading "~" by the user's home directory.
func ExpandPath(path string) (string, error) {
	return fsutil.ReplaceTildeInDir(path)
}
