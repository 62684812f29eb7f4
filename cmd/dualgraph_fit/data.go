package main

import (
	"io"
	"os"
	"slices"

	"github.com/eventflow/dualgraph/types/batches"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// loadCSVFile opens filePath and reads it with loadCSV.
func loadCSVFile(filePath string, labelColumns []string) (inputs, labels []*batches.Batch, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer func() { _ = f.Close() }()
	return loadCSV(f, labelColumns)
}

// loadCSV reads a CSV with a header line, where every column is numeric. The columns named in
// labelColumns form the label vector of each row, and the remaining columns (in file order) its
// input vector.
//
// Every column is parsed as float: empty or non-numeric cells are errors.
func loadCSV(r io.Reader, labelColumns []string) (inputs, labels []*batches.Batch, err error) {
	df := dataframe.ReadCSV(r, dataframe.HasHeader(true),
		dataframe.DetectTypes(false), dataframe.DefaultType(series.Float))
	if df.Err != nil {
		return nil, nil, errors.Wrap(df.Err, "failed to parse CSV")
	}
	if len(labelColumns) == 0 {
		return nil, nil, errors.New("no label columns given")
	}
	var inputColumns []string
	for _, name := range df.Names() {
		if !slices.Contains(labelColumns, name) {
			inputColumns = append(inputColumns, name)
		}
	}
	for _, name := range labelColumns {
		if !slices.Contains(df.Names(), name) {
			return nil, nil, errors.Errorf("label column %q not found in CSV columns %v", name, df.Names())
		}
	}
	if len(inputColumns) == 0 {
		return nil, nil, errors.New("CSV has no input columns")
	}
	if df.Nrow() == 0 {
		return nil, nil, errors.New("CSV has no rows")
	}

	toVectors := func(columns []string) ([]*batches.Batch, error) {
		values := make([][]float64, len(columns))
		for ii, name := range columns {
			col := df.Col(name)
			if col.Type() != series.Float || col.HasNaN() {
				return nil, errors.Errorf("column %q has missing or non-numeric values", name)
			}
			values[ii] = col.Float()
		}
		vectors := make([]*batches.Batch, df.Nrow())
		row := make([]float64, len(columns))
		for rowNum := range df.Nrow() {
			for ii := range columns {
				row[ii] = values[ii][rowNum]
			}
			vectors[rowNum] = batches.FromVector(row...)
		}
		return vectors, nil
	}
	if inputs, err = toVectors(inputColumns); err != nil {
		return nil, nil, err
	}
	if labels, err = toVectors(labelColumns); err != nil {
		return nil, nil, err
	}
	return inputs, labels, nil
}
