package datasets

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeCSV writes a CSV file with the given header and rows to path.
func writeCSV(t *testing.T, path, header string, rows []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create csv %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(header + "\n"); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for _, r := range rows {
		if _, err := f.WriteString(r + "\n"); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
}

// solidImage returns a width x height image filled with c.
func solidImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// gradientImage returns an image whose pixels all differ, so crops and
// transpositions can be told apart.
func gradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8((x + y) / 2), A: 255})
		}
	}
	return img
}

// writeJPEG encodes img as a high quality JPEG at path.
func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

// writePNG encodes img as a PNG at path.
func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

// kdrFixture lays out the two-sample dataset used in the end-to-end tests:
// trainLabels.csv with rows img1,0 and img2,2 and two 300x400 JPEGs, the
// first red and the second blue. It returns the data dir and the label path.
func kdrFixture(t *testing.T) (dataDir, labelsPath string) {
	t.Helper()
	tmp := t.TempDir()
	dataDir = filepath.Join(tmp, "train")
	if err := os.Mkdir(dataDir, 0755); err != nil {
		t.Fatalf("failed to create %s: %v", dataDir, err)
	}
	labelsPath = filepath.Join(tmp, "trainLabels.csv")
	writeCSV(t, labelsPath, "image,level", []string{"img1,0", "img2,2"})
	writeJPEG(t, filepath.Join(dataDir, "img1.jpeg"), solidImage(400, 300, color.NRGBA{R: 220, G: 30, B: 30, A: 255}))
	writeJPEG(t, filepath.Join(dataDir, "img2.jpeg"), solidImage(400, 300, color.NRGBA{R: 30, G: 30, B: 220, A: 255}))
	return dataDir, labelsPath
}
