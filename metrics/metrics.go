// Package metrics implements classification metrics: accuracy and multi-class
// precision/recall/F1 under the standard averaging policies.
//
// Zero denominators follow the usual scoring-library convention: a label with
// no predicted occurrences has precision 0, a label with no true occurrences
// has recall 0, and F1 is 0 whenever precision+recall is 0. The outputs are
// never NaN.
package metrics

import (
	"sort"

	"github.com/pkg/errors"
)

// Average is the policy for reducing per-label precision/recall/F1 into
// scalars.
type Average int

const (
	// Micro counts true positives globally: precision == recall == F1 ==
	// accuracy for single-label multi-class input.
	Micro Average = iota
	// Macro is the unweighted mean over the distinct labels present in the
	// reference labels.
	Macro
	// Weighted is the mean over labels weighted by each label's support.
	Weighted
	// Binary evaluates a single positive label only.
	Binary
	// None performs no reduction; only the per-label results are populated.
	None
)

// String returns the name of the averaging policy.
func (a Average) String() string {
	switch a {
	case Micro:
		return "micro"
	case Macro:
		return "macro"
	case Weighted:
		return "weighted"
	case Binary:
		return "binary"
	case None:
		return "none"
	default:
		return "invalid"
	}
}

var (
	// ErrConfig indicates an unrecognized averaging policy at construction.
	ErrConfig = errors.New("invalid scorer configuration")

	// ErrShape indicates labels and predictions of different lengths.
	ErrShape = errors.New("labels and predictions have different lengths")
)

// LabelResult holds the metrics of a single label.
type LabelResult struct {
	Label     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int // number of true occurrences of Label
}

// Result holds the reduced metrics, plus the per-label breakdown for the
// Macro, Weighted, Binary and None policies (Micro has no per-label
// decomposition). For None the scalar fields are zero and PerLabel is the
// result.
type Result struct {
	Precision float64
	Recall    float64
	F1        float64
	PerLabel  []LabelResult
}

// Scorer computes precision, recall and F1 under an averaging policy fixed at
// construction. A Scorer is stateless and safe for concurrent use.
type Scorer struct {
	average       Average
	positiveLabel int
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithPositiveLabel sets the label treated as positive under the Binary
// policy. It defaults to 1 and is ignored by the other policies.
func WithPositiveLabel(label int) Option {
	return func(s *Scorer) { s.positiveLabel = label }
}

// NewScorer returns a Scorer for the given averaging policy.
func NewScorer(average Average, opts ...Option) (*Scorer, error) {
	switch average {
	case Micro, Macro, Weighted, Binary, None:
	default:
		return nil, errors.Wrapf(ErrConfig, "averaging policy %d", int(average))
	}
	s := &Scorer{average: average, positiveLabel: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Score computes precision, recall and F1 of preds against labels. Both
// slices must have the same length; a mismatch fails with ErrShape.
func (s *Scorer) Score(labels, preds []int) (Result, error) {
	if len(labels) != len(preds) {
		return Result{}, errors.Wrapf(ErrShape, "%d labels vs %d predictions", len(labels), len(preds))
	}

	switch s.average {
	case Micro:
		return s.scoreMicro(labels, preds), nil
	case Binary:
		lr := calcForLabel(labels, preds, s.positiveLabel)
		return Result{
			Precision: lr.Precision,
			Recall:    lr.Recall,
			F1:        lr.F1,
			PerLabel:  []LabelResult{lr},
		}, nil
	default:
		return s.scorePerLabel(labels, preds), nil
	}
}

func (s *Scorer) scoreMicro(labels, preds []int) Result {
	truePositives := 0
	for i := range labels {
		if labels[i] == preds[i] {
			truePositives++
		}
	}
	v := 0.0
	if len(labels) > 0 {
		v = float64(truePositives) / float64(len(labels))
	}
	return Result{Precision: v, Recall: v, F1: v}
}

func (s *Scorer) scorePerLabel(labels, preds []int) Result {
	perLabel := make([]LabelResult, 0, 8)
	for _, label := range distinctLabels(labels) {
		perLabel = append(perLabel, calcForLabel(labels, preds, label))
	}

	result := Result{PerLabel: perLabel}
	if s.average == None || len(perLabel) == 0 {
		return result
	}

	switch s.average {
	case Macro:
		n := float64(len(perLabel))
		for _, lr := range perLabel {
			result.Precision += lr.Precision / n
			result.Recall += lr.Recall / n
			result.F1 += lr.F1 / n
		}
	case Weighted:
		total := float64(len(labels))
		for _, lr := range perLabel {
			w := float64(lr.Support) / total
			result.Precision += lr.Precision * w
			result.Recall += lr.Recall * w
			result.F1 += lr.F1 * w
		}
	}
	return result
}

// calcForLabel computes one-vs-rest precision, recall and F1 for a single
// label.
func calcForLabel(labels, preds []int, label int) LabelResult {
	support, predicted, truePositives := 0, 0, 0
	for i := range labels {
		if labels[i] == label {
			support++
			if preds[i] == label {
				truePositives++
			}
		}
		if preds[i] == label {
			predicted++
		}
	}

	lr := LabelResult{Label: label, Support: support}
	if predicted > 0 {
		lr.Precision = float64(truePositives) / float64(predicted)
	}
	if support > 0 {
		lr.Recall = float64(truePositives) / float64(support)
	}
	if lr.Precision+lr.Recall > 0 {
		lr.F1 = 2 * lr.Precision * lr.Recall / (lr.Precision + lr.Recall)
	}
	return lr
}

// distinctLabels returns the sorted distinct values of labels.
func distinctLabels(labels []int) []int {
	seen := make(map[int]struct{}, 8)
	var out []int
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

// Accuracy returns the fraction of predictions equal to their labels, or 0
// for empty input. Both slices must have the same length.
func Accuracy(labels, preds []int) (float64, error) {
	if len(labels) != len(preds) {
		return 0, errors.Wrapf(ErrShape, "%d labels vs %d predictions", len(labels), len(preds))
	}
	if len(labels) == 0 {
		return 0, nil
	}
	correct := 0
	for i := range labels {
		if labels[i] == preds[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}
