package metrics

import (
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// evalRow is the row schema of an evaluation-set parquet file.
type evalRow struct {
	Label      int64 `parquet:"label"`
	Prediction int64 `parquet:"prediction"`
}

// ReadEvalSet reads label/prediction pairs from a parquet file with int64
// "label" and "prediction" columns, as exported by evaluation notebooks. The
// returned slices are index-aligned and ready for Scorer.Score.
func ReadEvalSet(path string) (labels, preds []int, err error) {
	rows, err := parquet.ReadFile[evalRow](path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read evaluation set %q", path)
	}
	labels = make([]int, len(rows))
	preds = make([]int, len(rows))
	for i, row := range rows {
		labels[i] = int(row.Label)
		preds[i] = int(row.Prediction)
	}
	return labels, preds, nil
}

// WriteEvalSet writes label/prediction pairs to a parquet file readable by
// ReadEvalSet. Both slices must have the same length.
func WriteEvalSet(path string, labels, preds []int) error {
	if len(labels) != len(preds) {
		return errors.Wrapf(ErrShape, "%d labels vs %d predictions", len(labels), len(preds))
	}
	rows := make([]evalRow, len(labels))
	for i := range labels {
		rows[i] = evalRow{Label: int64(labels[i]), Prediction: int64(preds[i])}
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return errors.Wrapf(err, "failed to write evaluation set %q", path)
	}
	return nil
}
