// Package ioformat implements C9: the shallow I/O collaborators around the
// numerical core — array load/save, config parsing, and the summary/state
// writers.
package ioformat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/plomsys/plom/errs"
	"gonum.org/v1/gonum/mat"
)

// LoadMatrix reads a whitespace-delimited text matrix from path. The
// number of columns is taken from the first non-empty line; every
// subsequent line must have the same column count.
func LoadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.IoError{Stage: "ioformat.LoadMatrix", Path: path, Err: err}
	}
	defer f.Close()

	var rows [][]float64
	cols := -1

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024*64)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if cols == -1 {
			cols = len(fields)
		} else if len(fields) != cols {
			return nil, &errs.IoError{Stage: "ioformat.LoadMatrix", Path: path, Err: fmt.Errorf("ragged row: expected %d columns, got %d", cols, len(fields))}
		}
		row := make([]float64, cols)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &errs.IoError{Stage: "ioformat.LoadMatrix", Path: path, Err: fmt.Errorf("parse %q: %w", f, err)}
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, &errs.IoError{Stage: "ioformat.LoadMatrix", Path: path, Err: err}
	}
	if len(rows) == 0 {
		return nil, &errs.IoError{Stage: "ioformat.LoadMatrix", Path: path, Err: fmt.Errorf("empty file")}
	}

	data := make([]float64, 0, len(rows)*cols)
	for _, row := range rows {
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

// SaveMatrix writes m as a whitespace-delimited text file, one row per
// line.
func SaveMatrix(path string, m *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return &errs.IoError{Stage: "ioformat.SaveMatrix", Path: path, Err: err}
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				w.WriteByte(' ')
			}
			fmt.Fprintf(w, "%.17g", m.At(r, c))
		}
		w.WriteByte('\n')
	}
	return w.Flush()
}

const binaryMagic uint32 = 0x706c6f6d // "plom"

// SaveMatrixBinary writes m in a small fixed binary format: magic (uint32),
// rows (uint32), cols (uint32), then row-major float64 values.
func SaveMatrixBinary(path string, m *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return &errs.IoError{Stage: "ioformat.SaveMatrixBinary", Path: path, Err: err}
	}
	defer f.Close()

	rows, cols := m.Dims()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, binaryMagic); err != nil {
		return &errs.IoError{Stage: "ioformat.SaveMatrixBinary", Path: path, Err: err}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(rows)); err != nil {
		return &errs.IoError{Stage: "ioformat.SaveMatrixBinary", Path: path, Err: err}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(cols)); err != nil {
		return &errs.IoError{Stage: "ioformat.SaveMatrixBinary", Path: path, Err: err}
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if err := binary.Write(w, binary.LittleEndian, m.At(r, c)); err != nil {
				return &errs.IoError{Stage: "ioformat.SaveMatrixBinary", Path: path, Err: err}
			}
		}
	}
	return w.Flush()
}

// LoadMatrixBinary reads the format written by SaveMatrixBinary.
func LoadMatrixBinary(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.IoError{Stage: "ioformat.LoadMatrixBinary", Path: path, Err: err}
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic, rows, cols uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, &errs.IoError{Stage: "ioformat.LoadMatrixBinary", Path: path, Err: err}
	}
	if magic != binaryMagic {
		return nil, &errs.IoError{Stage: "ioformat.LoadMatrixBinary", Path: path, Err: fmt.Errorf("bad magic %x", magic)}
	}
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return nil, &errs.IoError{Stage: "ioformat.LoadMatrixBinary", Path: path, Err: err}
	}
	if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
		return nil, &errs.IoError{Stage: "ioformat.LoadMatrixBinary", Path: path, Err: err}
	}

	data := make([]float64, rows*cols)
	for i := range data {
		if err := binary.Read(r, binary.LittleEndian, &data[i]); err != nil {
			return nil, &errs.IoError{Stage: "ioformat.LoadMatrixBinary", Path: path, Err: io.ErrUnexpectedEOF}
		}
	}

	return mat.NewDense(int(rows), int(cols), data), nil
}
