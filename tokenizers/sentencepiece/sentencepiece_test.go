package sentencepiece

import (
	"os"
	"testing"

	"github.com/gomlx/go-nlputils/spans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelPath returns a local SentencePiece model file, or skips the test.
// Set NLPUTILS_SPM_MODEL to e.g. a downloaded flan-t5 "tokenizer.model".
func modelPath(t *testing.T) string {
	t.Helper()
	path := os.Getenv("NLPUTILS_SPM_MODEL")
	if path == "" {
		t.Skip("NLPUTILS_SPM_MODEL not set")
	}
	if _, err := os.Stat(path); err != nil {
		t.Skipf("model file %q not available: %v", path, err)
	}
	return path
}

func TestEncodeWithSpansMatchesEncode(t *testing.T) {
	tok, err := NewFromPath(modelPath(t))
	require.NoError(t, err)

	inputs := []string{
		"hello",
		"hello world",
		"The quick brown fox jumps over the lazy dog.",
		"Multiple  spaces   here",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			enc := tok.EncodeWithSpans(input)
			assert.Equal(t, tok.Encode(input), enc.IDs)
		})
	}
}

func TestEncodeWithSpansValidSpans(t *testing.T) {
	tok, err := NewFromPath(modelPath(t))
	require.NoError(t, err)

	inputs := []string{
		"hello world",
		"The quick brown fox.",
		"Testing 123 numbers!",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			enc := tok.EncodeWithSpans(input)
			require.Len(t, enc.Spans, len(enc.IDs))
			for i, s := range enc.Spans {
				assert.GreaterOrEqual(t, s.Start, 0, "token %d", i)
				assert.LessOrEqual(t, s.End, len(input), "token %d", i)
				assert.LessOrEqual(t, s.Start, s.End, "token %d", i)
			}
		})
	}
}

func TestEncodeWithSpansEmptyString(t *testing.T) {
	tok, err := NewFromPath(modelPath(t))
	require.NoError(t, err)

	enc := tok.EncodeWithSpans("")
	assert.Empty(t, enc.IDs)
	assert.Empty(t, enc.Spans)
}

func TestNewFromPathMissingFile(t *testing.T) {
	_, err := NewFromPath("/nonexistent/tokenizer.model")
	assert.Error(t, err)
}

func TestInterface(t *testing.T) {
	var _ spans.SpanTokenizer = (*Tokenizer)(nil)
}
