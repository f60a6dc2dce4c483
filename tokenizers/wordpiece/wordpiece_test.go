package wordpiece

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/go-nlputils/spans"
	"github.com/gomlx/go-nlputils/wordembed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab() map[string]int {
	tokens := []string{
		"[UNK]", "the", "bank", "robber", "robbed", "un", "##bel", "##ievable",
		"story", "hello", "world", ",", ".", "!", "cafe", "##s",
	}
	vocab := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		vocab[tok] = i
	}
	return vocab
}

func mustTokenizer(t *testing.T, opts ...Option) *Tokenizer {
	t.Helper()
	tok, err := New(testVocab(), opts...)
	require.NoError(t, err)
	return tok
}

func TestNewRejectsBadVocab(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(map[string]int{"the": 0}) // no [UNK]
	assert.Error(t, err)
}

func TestEncodeWholeWords(t *testing.T) {
	tok := mustTokenizer(t)
	text := "the bank robber robbed the bank"
	enc := tok.EncodeWithSpans(text)
	require.Len(t, enc.IDs, 6)
	require.Len(t, enc.Spans, 6)

	// Each span slices back to the word it encodes.
	words := strings.Fields(text)
	for i, s := range enc.Spans {
		assert.Equal(t, words[i], text[s.Start:s.End])
	}
	assert.Equal(t, tok.Encode(text), enc.IDs)
}

func TestEncodeSplitWord(t *testing.T) {
	tok := mustTokenizer(t)
	text := "unbelievable story"
	enc := tok.EncodeWithSpans(text)

	require.Len(t, enc.IDs, 4)
	assert.Equal(t, []spans.Span{{Start: 0, End: 2}, {Start: 2, End: 5}, {Start: 5, End: 12}, {Start: 13, End: 18}}, enc.Spans)
	assert.Equal(t, "un", text[enc.Spans[0].Start:enc.Spans[0].End])
	assert.Equal(t, "bel", text[enc.Spans[1].Start:enc.Spans[1].End])
	assert.Equal(t, "ievable", text[enc.Spans[2].Start:enc.Spans[2].End])
	assert.Equal(t, "story", text[enc.Spans[3].Start:enc.Spans[3].End])
}

func TestEncodePunctuation(t *testing.T) {
	tok := mustTokenizer(t)
	text := "hello, world!"
	enc := tok.EncodeWithSpans(text)
	require.Len(t, enc.IDs, 4)
	assert.Equal(t, ",", text[enc.Spans[1].Start:enc.Spans[1].End])
	assert.Equal(t, "!", text[enc.Spans[3].Start:enc.Spans[3].End])

	// Punctuation tokens stay inside their whitespace word's span, so the
	// encoding still aligns with spans.Words.
	words := spans.Words(text)
	assert.True(t, words[0].Contains(enc.Spans[0]))
	assert.True(t, words[0].Contains(enc.Spans[1]))
	assert.True(t, words[1].Contains(enc.Spans[2]))
	assert.True(t, words[1].Contains(enc.Spans[3]))
}

func TestEncodeUnknownWord(t *testing.T) {
	tok := mustTokenizer(t)
	text := "the zyzzyva"
	enc := tok.EncodeWithSpans(text)
	require.Len(t, enc.IDs, 2)
	assert.Equal(t, tok.unkID, enc.IDs[1])
	// The unknown token spans the whole unmatched word.
	assert.Equal(t, "zyzzyva", text[enc.Spans[1].Start:enc.Spans[1].End])
}

func TestEncodeLowercase(t *testing.T) {
	tok := mustTokenizer(t, WithLowercase())
	text := "The Bank"
	enc := tok.EncodeWithSpans(text)
	require.Len(t, enc.IDs, 2)
	id, _ := tok.TokenToID("the")
	assert.Equal(t, id, enc.IDs[0])
	// Spans still point at the original, un-lowercased text.
	assert.Equal(t, "The", text[enc.Spans[0].Start:enc.Spans[0].End])
}

func TestEncodeAccentStripping(t *testing.T) {
	tok := mustTokenizer(t, WithLowercase(), WithAccentStripping())
	text := "cafés"
	enc := tok.EncodeWithSpans(text)
	require.Len(t, enc.IDs, 2)
	cafeID, _ := tok.TokenToID("cafe")
	sID, _ := tok.TokenToID("##s")
	assert.Equal(t, []int{cafeID, sID}, enc.IDs)
	// "café" is 5 bytes; the spans cover the original bytes.
	assert.Equal(t, spans.Span{Start: 0, End: 5}, enc.Spans[0])
	assert.Equal(t, spans.Span{Start: 5, End: 6}, enc.Spans[1])
}

func TestMaxWordChars(t *testing.T) {
	tok := mustTokenizer(t, WithMaxWordChars(4))
	enc := tok.EncodeWithSpans("robber")
	require.Len(t, enc.IDs, 1)
	assert.Equal(t, tok.unkID, enc.IDs[0])
}

func TestDecode(t *testing.T) {
	tok := mustTokenizer(t)
	ids := tok.Encode("unbelievable story")
	assert.Equal(t, "unbelievable story", tok.Decode(ids))
}

func TestNewFromVocabFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	lines := []string{"[UNK]", "hello", "world"}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	tok, err := NewFromVocabFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, tok.VocabSize())
	id, ok := tok.TokenToID("world")
	require.True(t, ok)
	assert.Equal(t, 2, id)
	token, ok := tok.IDToToken(1)
	require.True(t, ok)
	assert.Equal(t, "hello", token)
}

// TestFeedsAggregator runs the tokenizer output through the word-embedding
// aggregator end to end: one output vector per whitespace word.
func TestFeedsAggregator(t *testing.T) {
	tok := mustTokenizer(t)
	text := "unbelievable story , the bank"
	enc := tok.EncodeWithSpans(text)

	embeddings := make([][]float32, len(enc.IDs))
	for i := range embeddings {
		embeddings[i] = []float32{float32(i)}
	}
	got, aggErr := wordembed.Aggregate(embeddings, enc.Spans, text, wordembed.MergeAverage)
	require.NoError(t, aggErr)
	assert.Len(t, got, len(strings.Fields(text)))
}
