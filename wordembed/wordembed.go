// Package wordembed derives word-level embeddings from subword embeddings
// produced by a transformer encoder.
//
// Subword tokenizers (WordPiece, SentencePiece) split words into pieces, so
// the encoder emits one vector per piece rather than one per word. Aggregate
// realigns the two tokenizations by character span and merges the vectors of
// all subwords belonging to the same whitespace-delimited word.
package wordembed

import (
	"github.com/gomlx/go-nlputils/spans"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Merge selects how the subword embeddings of one word are combined.
type Merge int

const (
	// MergeAverage takes the element-wise mean of the subword embeddings.
	MergeAverage Merge = iota
	// MergeFirst takes the embedding of the first subword only.
	MergeFirst
)

// String returns the name of the merge strategy.
func (m Merge) String() string {
	switch m {
	case MergeAverage:
		return "average"
	case MergeFirst:
		return "first"
	default:
		return "invalid"
	}
}

var (
	// ErrAlignment indicates a subword span that does not fit inside a word
	// span, meaning the subword and whitespace tokenizations disagree. This is
	// an upstream tokenization inconsistency; it is never retried.
	ErrAlignment = errors.New("subword span not aligned to word span")

	// ErrUnsupportedMerge indicates an unrecognized merge strategy.
	ErrUnsupportedMerge = errors.New("unsupported merge strategy")
)

// Aggregate merges an ordered sequence of subword embeddings into one
// embedding per whitespace-delimited word of text.
//
// embeddings and subwordSpans must be index-aligned: subwordSpans[i] is the
// byte span of the subword whose vector is embeddings[i], in the same
// coordinate system as text. Every subword span must lie fully inside one
// word span and subwords must arrive in left-to-right order; a violation
// fails with ErrAlignment. The result has exactly spans.WordCount(text)
// vectors.
//
// The sweep is a single left-to-right pass: subwords are buffered until one
// falls outside the current word span, at which point the buffer is merged
// and the next word starts. It runs in O(N) without backtracking, relying on
// both span sequences being monotonically non-decreasing.
func Aggregate(embeddings [][]float32, subwordSpans []spans.Span, text string, merge Merge) ([][]float32, error) {
	if merge != MergeAverage && merge != MergeFirst {
		return nil, errors.Wrapf(ErrUnsupportedMerge, "merge strategy %d", int(merge))
	}
	if len(embeddings) != len(subwordSpans) {
		return nil, errors.Errorf("got %d embeddings for %d subword spans", len(embeddings), len(subwordSpans))
	}
	dim := -1
	for i, e := range embeddings {
		if dim < 0 {
			dim = len(e)
		} else if len(e) != dim {
			return nil, errors.Errorf("embedding %d has dimension %d, want %d", i, len(e), dim)
		}
	}

	wordSpans := spans.Words(text)
	if len(wordSpans) == 0 {
		if len(subwordSpans) != 0 {
			return nil, errors.Wrapf(ErrAlignment, "%d subword spans but text has no words", len(subwordSpans))
		}
		return nil, nil
	}
	if len(subwordSpans) == 0 {
		return nil, errors.Wrapf(ErrAlignment, "no subword spans for text with %d words", len(wordSpans))
	}

	out := make([][]float32, 0, len(wordSpans))
	word := 0
	var buffer []int // indices of subwords belonging to the current word
	for i, ss := range subwordSpans {
		if wordSpans[word].Contains(ss) {
			buffer = append(buffer, i)
			continue
		}
		// Word boundary crossed: flush the buffer and advance.
		if len(buffer) == 0 {
			return nil, errors.Wrapf(ErrAlignment, "subword span [%d,%d) outside word span [%d,%d)",
				ss.Start, ss.End, wordSpans[word].Start, wordSpans[word].End)
		}
		out = append(out, mergeBuffer(embeddings, buffer, merge))
		word++
		if word >= len(wordSpans) || !wordSpans[word].Contains(ss) {
			return nil, errors.Wrapf(ErrAlignment, "subword span [%d,%d) straddles a word boundary in %q",
				ss.Start, ss.End, text)
		}
		buffer = append(buffer[:0], i)
	}
	out = append(out, mergeBuffer(embeddings, buffer, merge))

	// Internal invariant: one embedding per whitespace word. A violation means
	// the two tokenizations were produced from different texts.
	if len(out) != len(wordSpans) {
		return nil, errors.Errorf("aggregated %d word embeddings for %d words: tokenization mismatch upstream",
			len(out), len(wordSpans))
	}
	klog.V(2).Infof("aggregated %d subwords into %d word embeddings (merge=%s)", len(subwordSpans), len(out), merge)
	return out, nil
}

func mergeBuffer(embeddings [][]float32, buffer []int, merge Merge) []float32 {
	first := embeddings[buffer[0]]
	merged := make([]float32, len(first))
	if merge == MergeFirst || len(buffer) == 1 {
		copy(merged, first)
		return merged
	}
	for _, idx := range buffer {
		for d, v := range embeddings[idx] {
			merged[d] += v
		}
	}
	n := float32(len(buffer))
	for d := range merged {
		merged[d] /= n
	}
	return merged
}
