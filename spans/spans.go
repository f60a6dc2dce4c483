// Package spans defines character spans over a source string and the
// tokenizer API used by the rest of the module.
//
// All offsets are byte offsets (not rune offsets), suitable for slicing Go
// strings directly: text[span.Start:span.End]. Spans are half-open:
// [Start, End). The half-open convention is used consistently by every
// tokenizer and by the word-embedding aggregator; mixing conventions leads to
// off-by-one bugs at word boundaries.
package spans

import "unicode"

// Span is a byte-offset range into a source string.
type Span struct {
	Start int // start byte position (inclusive)
	End   int // end byte position (exclusive)
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether o lies fully inside s.
func (s Span) Contains(o Span) bool {
	return o.Start >= s.Start && o.End <= s.End
}

// Words returns the spans of the whitespace-delimited words of text, in
// left-to-right order. Words are maximal runs of non-whitespace runes, so
// len(Words(text)) == len(strings.Fields(text)).
func Words(text string) []Span {
	var words []Span
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, Span{Start: start, End: i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, Span{Start: start, End: len(text)})
	}
	return words
}

// WordCount returns the number of whitespace-delimited words in text.
func WordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}

// Encoding contains tokens with their spans in the original text.
type Encoding struct {
	IDs   []int  // token IDs
	Spans []Span // byte spans for each token, index-aligned with IDs
}

// Tokenizer converts text to token ids and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
}

// SpanTokenizer extends Tokenizer with span tracking. Tokenizers implementing
// it can feed the word-embedding aggregator, which needs to map each subword
// back to its position in the original text.
type SpanTokenizer interface {
	Tokenizer
	// EncodeWithSpans returns tokens along with their byte spans in the original text.
	EncodeWithSpans(text string) Encoding
}
