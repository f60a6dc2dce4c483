// Package wordpiece implements a WordPiece tokenizer (the BERT subword
// model) with byte-span tracking.
//
// Unlike a plain encoder, every produced token carries its span in the
// original text, so the output can be fed directly to wordembed.Aggregate.
// Normalization (lowercasing, accent stripping) is applied per rune, which
// keeps the spans anchored to the original, un-normalized text.
package wordpiece

import (
	"bufio"
	"os"
	"strings"
	"unicode"

	"github.com/gomlx/go-nlputils/spans"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultPrefix   = "##"
	defaultUnkToken = "[UNK]"
	defaultMaxChars = 100
)

// Tokenizer is a WordPiece tokenizer over a fixed vocabulary.
type Tokenizer struct {
	vocab     map[string]int
	idToToken map[int]string

	prefix       string // continuing-subword prefix
	unkToken     string
	unkID        int
	maxChars     int // words longer than this become a single unknown token
	lowercase    bool
	stripAccents bool
	splitPunct   bool
}

// Compile time assert that Tokenizer implements spans.SpanTokenizer.
var _ spans.SpanTokenizer = &Tokenizer{}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithLowercase lowercases input before vocabulary lookup (uncased models).
func WithLowercase() Option {
	return func(t *Tokenizer) { t.lowercase = true }
}

// WithAccentStripping removes combining marks after NFD decomposition, the
// way BERT's uncased normalizer does.
func WithAccentStripping() Option {
	return func(t *Tokenizer) { t.stripAccents = true }
}

// WithContinuingPrefix overrides the "##" continuing-subword prefix.
func WithContinuingPrefix(prefix string) Option {
	return func(t *Tokenizer) { t.prefix = prefix }
}

// WithUnknownToken overrides the "[UNK]" unknown token.
func WithUnknownToken(token string) Option {
	return func(t *Tokenizer) { t.unkToken = token }
}

// WithMaxWordChars overrides the maximum word length (in runes) before a word
// is mapped to the unknown token wholesale.
func WithMaxWordChars(n int) Option {
	return func(t *Tokenizer) { t.maxChars = n }
}

// WithoutPunctuationSplit disables the BERT-style splitting of punctuation
// into standalone tokens.
func WithoutPunctuationSplit() Option {
	return func(t *Tokenizer) { t.splitPunct = false }
}

// New creates a WordPiece tokenizer from a vocabulary mapping. The unknown
// token must be present in the vocabulary.
func New(vocab map[string]int, opts ...Option) (*Tokenizer, error) {
	if len(vocab) == 0 {
		return nil, errors.Errorf("empty vocabulary")
	}
	t := &Tokenizer{
		vocab:      vocab,
		idToToken:  make(map[int]string, len(vocab)),
		prefix:     defaultPrefix,
		unkToken:   defaultUnkToken,
		maxChars:   defaultMaxChars,
		splitPunct: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	for token, id := range vocab {
		t.idToToken[id] = token
	}
	unkID, ok := vocab[t.unkToken]
	if !ok {
		return nil, errors.Errorf("unknown token %q not in vocabulary", t.unkToken)
	}
	t.unkID = unkID
	return t, nil
}

// NewFromVocabFile creates a WordPiece tokenizer from a vocab.txt-style file:
// one token per line, line number is the token id.
func NewFromVocabFile(path string, opts ...Option) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open vocabulary file %q", path)
	}
	defer f.Close()

	vocab := make(map[string]int, 30000)
	scanner := bufio.NewScanner(f)
	id := 0
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if token == "" {
			continue
		}
		vocab[token] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read vocabulary file %q", path)
	}
	return New(vocab, opts...)
}

// runePos is a (possibly normalized) rune together with the byte span of the
// original rune it came from.
type runePos struct {
	r          rune
	start, end int
}

// Encode converts text to a sequence of token IDs.
func (t *Tokenizer) Encode(text string) []int {
	return t.EncodeWithSpans(text).IDs
}

// EncodeWithSpans converts text to token IDs with their byte spans in the
// original text. Every span lies inside the span of the whitespace word it
// came from, so the result aligns with spans.Words(text).
func (t *Tokenizer) EncodeWithSpans(text string) spans.Encoding {
	var enc spans.Encoding
	for _, word := range spans.Words(text) {
		runes := t.normalizeWord(text[word.Start:word.End], word.Start)
		for _, piece := range t.splitPieces(runes) {
			ids, pieceSpans := t.encodePiece(piece)
			enc.IDs = append(enc.IDs, ids...)
			enc.Spans = append(enc.Spans, pieceSpans...)
		}
	}
	return enc
}

// normalizeWord lowercases and strips accents rune by rune, so every
// normalized rune keeps the byte span of the original rune at base+offset.
func (t *Tokenizer) normalizeWord(word string, base int) []runePos {
	runes := make([]runePos, 0, len(word))
	for i, r := range word {
		start := base + i
		end := start + len(string(r))
		if t.stripAccents {
			for _, dr := range norm.NFD.String(string(r)) {
				if unicode.Is(unicode.Mn, dr) {
					continue
				}
				if t.lowercase {
					dr = unicode.ToLower(dr)
				}
				runes = append(runes, runePos{r: dr, start: start, end: end})
			}
			continue
		}
		if t.lowercase {
			r = unicode.ToLower(r)
		}
		runes = append(runes, runePos{r: r, start: start, end: end})
	}
	return runes
}

// splitPieces splits a word at punctuation, each punctuation rune becoming
// its own piece. All pieces stay within the word's span.
func (t *Tokenizer) splitPieces(runes []runePos) [][]runePos {
	if !t.splitPunct {
		if len(runes) == 0 {
			return nil
		}
		return [][]runePos{runes}
	}
	var pieces [][]runePos
	start := 0
	for i, rp := range runes {
		if isPunctuation(rp.r) {
			if i > start {
				pieces = append(pieces, runes[start:i])
			}
			pieces = append(pieces, runes[i:i+1])
			start = i + 1
		}
	}
	if start < len(runes) {
		pieces = append(pieces, runes[start:])
	}
	return pieces
}

// encodePiece runs greedy longest-match WordPiece over one piece. A piece
// with no match anywhere becomes a single unknown token spanning the whole
// piece.
func (t *Tokenizer) encodePiece(piece []runePos) ([]int, []spans.Span) {
	if len(piece) == 0 {
		return nil, nil
	}
	full := spans.Span{Start: piece[0].start, End: piece[len(piece)-1].end}
	if len(piece) > t.maxChars {
		return []int{t.unkID}, []spans.Span{full}
	}

	var ids []int
	var pieceSpans []spans.Span
	start := 0
	for start < len(piece) {
		end := len(piece)
		found := false
		for start < end {
			sub := runesString(piece[start:end])
			if start > 0 {
				sub = t.prefix + sub
			}
			if id, ok := t.vocab[sub]; ok {
				ids = append(ids, id)
				pieceSpans = append(pieceSpans, spans.Span{Start: piece[start].start, End: piece[end-1].end})
				found = true
				break
			}
			end--
		}
		if !found {
			return []int{t.unkID}, []spans.Span{full}
		}
		start = end
	}
	return ids, pieceSpans
}

func runesString(piece []runePos) string {
	var sb strings.Builder
	for _, rp := range piece {
		sb.WriteRune(rp.r)
	}
	return sb.String()
}

// Decode converts a sequence of token IDs back to text, gluing
// continuing-subword tokens to their predecessor.
func (t *Tokenizer) Decode(ids []int) string {
	var sb strings.Builder
	for i, id := range ids {
		token, ok := t.idToToken[id]
		if !ok {
			continue
		}
		if strings.HasPrefix(token, t.prefix) {
			sb.WriteString(strings.TrimPrefix(token, t.prefix))
		} else {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(token)
		}
	}
	return sb.String()
}

// VocabSize returns the size of the vocabulary.
func (t *Tokenizer) VocabSize() int { return len(t.vocab) }

// TokenToID converts a token string to its ID.
func (t *Tokenizer) TokenToID(token string) (int, bool) {
	id, ok := t.vocab[token]
	return id, ok
}

// IDToToken converts a token ID to its string.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	token, ok := t.idToToken[id]
	return token, ok
}

func isPunctuation(r rune) bool {
	// ASCII punctuation first, then the Unicode categories.
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
