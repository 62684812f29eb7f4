// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batches

import (
	"bytes"
	"encoding/gob"

	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// batchGob is the serialized form of a Batch: the shape and the flat row-major values of each matrix.
type batchGob struct {
	Size, Rows, Columns int
	Data                [][]float64
}

// GobEncode implements gob.GobEncoder.
func (b *Batch) GobEncode() ([]byte, error) {
	bg := batchGob{Size: b.shape.Size, Rows: b.shape.Rows, Columns: b.shape.Columns, Data: make([][]float64, len(b.values))}
	for ii, m := range b.values {
		bg.Data[ii] = mat.DenseCopyOf(m).RawMatrix().Data
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(bg); err != nil {
		return nil, errors.Wrapf(err, "failed to serialize Batch%s", b.shape)
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (b *Batch) GobDecode(data []byte) error {
	var bg batchGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&bg); err != nil {
		return errors.Wrap(err, "failed to deserialize Batch")
	}
	shape := shapes.Shape{Size: bg.Size, Rows: bg.Rows, Columns: bg.Columns}
	if !shape.Ok() || len(bg.Data) != shape.Size {
		return shapes.Mismatch("failed to deserialize Batch: invalid shape %s for %d matrices", shape, len(bg.Data))
	}
	values := make([]*mat.Dense, shape.Size)
	for ii, flat := range bg.Data {
		if len(flat) != shape.Elements() {
			return shapes.Mismatch("failed to deserialize Batch%s: matrix #%d has %d values", shape, ii, len(flat))
		}
		values[ii] = mat.NewDense(shape.Rows, shape.Columns, flat)
	}
	b.shape, b.values = shape, values
	return nil
}
