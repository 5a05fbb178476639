package ioformat

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/plomsys/plom/errs"
)

// StateBundle is the gob-serializable snapshot of a pipeline run, built from
// plain slices/floats rather than gonum types so it has no dependency on
// mat's internal layout surviving a version bump.
type StateBundle struct {
	ScaleMethod string
	ScaleCenter []float64
	ScaleScale  []float64

	PCAEigenvalues []float64
	PCAV           []float64 // row-major, Dim() columns
	PCARows        int
	PCACols        int
	PCAScaled      bool

	DMAPSEpsilon float64
	DMAPSKappa   int
	DMAPSEigen   []float64
	DMAPSG       []float64
	DMAPSGRows   int
	DMAPSGCols   int

	ProjectionG    []float64
	ProjectionA    []float64
	ProjectionRows int
	ProjectionCols int

	AugmentedSet    []float64
	AugmentedRows   int
	AugmentedCols   int
	HasAugmentedSet bool
}

// SaveState gob-encodes b and writes it to path.
func SaveState(path string, b *StateBundle) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return &errs.IoError{Stage: "ioformat.SaveState", Path: path, Err: err}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return &errs.IoError{Stage: "ioformat.SaveState", Path: path, Err: err}
	}
	return nil
}

// LoadState reads and gob-decodes the bundle written by SaveState.
func LoadState(path string) (*StateBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IoError{Stage: "ioformat.LoadState", Path: path, Err: err}
	}
	var b StateBundle
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, &errs.IoError{Stage: "ioformat.LoadState", Path: path, Err: err}
	}
	return &b, nil
}
