package main

// Example command that loads the Kaggle Diabetic Retinopathy training images,
// builds a couple of minibatches and prints their shapes.
//
// Images are only read when a batch needs them, so opening the dataset is
// fast even for the full 35k images.
//
// Usage:
//   go run ./example
//
// Note: this example expects the Kaggle data under ../assets/kaggle/dr, with
// the images in train/ and trainLabels.csv next to it. If the label file is
// not found the example will print an error and exit.

import (
	"fmt"
	"io"
	"log"
	"math/rand"

	"github.com/Noofbiz/kaggledr/datasets"
)

func main() {
	dataDir := "../assets/kaggle/dr/train"
	labelsPath, err := datasets.FindCSV("../assets/kaggle/dr")
	if err != nil {
		log.Fatalf("failed to find the label file: %v", err)
	}

	ds, err := datasets.NewKaggleDR(dataDir, labelsPath, datasets.DefaultConfig())
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	fmt.Printf("Using labels from %s\n", labelsPath)
	fmt.Printf("Total examples available: %d\n", ds.Len())
	fmt.Printf("Example shape: %v\n", ds.ExampleDimensions())

	// A single example, as a tensor.
	example, label, err := ds.Example(0)
	if err != nil {
		log.Fatalf("failed to load example 0: %v", err)
	}
	fmt.Printf("Example 0: label=%d tensor=%s\n", label, example.Shape())

	// Two shuffled batches of 8, the way a gomlx training loop would consume them.
	n := min(16, ds.Len())
	train, err := datasets.NewEpochDataset("train", ds, datasets.AllIndices(n), 8, rand.New(rand.NewSource(1)))
	if err != nil {
		log.Fatalf("failed to create epoch dataset: %v", err)
	}
	for {
		_, inputs, labels, err := train.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("failed to build batch: %v", err)
		}
		fmt.Printf("Batch: images=%s labels=%v\n", inputs[0].Shape(), labels[0].Value())
	}

	fmt.Println("\nExample completed successfully!")
}
