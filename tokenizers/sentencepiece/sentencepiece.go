// Package sentencepiece adapts the SentencePiece tokenizer to the
// spans.SpanTokenizer interface, recovering the byte span of each piece in
// the original text.
package sentencepiece

import (
	"strings"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/go-nlputils/spans"
	"github.com/pkg/errors"
)

// metaspace is U+2581 (lower one eighth block), SentencePiece's space
// replacement: a piece starting with it begins a new word.
const metaspace = "▁"

// Tokenizer wraps a SentencePiece processor.
type Tokenizer struct {
	proc *esentencepiece.Processor
}

// Compile time assert that Tokenizer implements spans.SpanTokenizer.
var _ spans.SpanTokenizer = &Tokenizer{}

// NewFromPath creates a tokenizer from a SentencePiece model proto file
// (typically "tokenizer.model").
func NewFromPath(path string) (*Tokenizer, error) {
	proc, err := esentencepiece.NewProcessorFromPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't load sentencepiece model %q", path)
	}
	return &Tokenizer{proc: proc}, nil
}

// Encode returns the text encoded into a sequence of ids.
func (t *Tokenizer) Encode(text string) []int {
	tokens := t.proc.Encode(text)
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = tok.ID
	}
	return ids
}

// Decode returns the text from a sequence of ids.
func (t *Tokenizer) Decode(ids []int) string {
	return t.proc.Decode(ids)
}

// EncodeWithSpans returns the encoded ids along with each piece's byte span
// in the original text. Pieces are matched back left to right; the metaspace
// marker is dropped before matching, so spans never cover the whitespace
// between words.
func (t *Tokenizer) EncodeWithSpans(text string) spans.Encoding {
	tokens := t.proc.Encode(text)
	enc := spans.Encoding{
		IDs:   make([]int, len(tokens)),
		Spans: make([]spans.Span, len(tokens)),
	}

	pos := 0
	for i, tok := range tokens {
		enc.IDs[i] = tok.ID

		piece, startsWord := strings.CutPrefix(tok.Text, metaspace)
		if startsWord {
			for pos < len(text) && isSpaceByte(text[pos]) {
				pos++
			}
		}

		if piece == "" {
			// The token is only the word separator itself.
			start := pos
			if startsWord && start > 0 {
				start--
			}
			enc.Spans[i] = spans.Span{Start: start, End: pos}
			continue
		}

		if idx := strings.Index(text[pos:], piece); idx >= 0 {
			start := pos + idx
			pos = start + len(piece)
			enc.Spans[i] = spans.Span{Start: start, End: pos}
		} else {
			// Piece not found verbatim (normalization changed it); advance by
			// piece length as a best effort.
			start := pos
			pos = min(pos+len(piece), len(text))
			enc.Spans[i] = spans.Span{Start: start, End: pos}
		}
	}
	return enc
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
