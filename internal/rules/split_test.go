package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedLength(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"plain ascii", "hello world", 11},
		{"empty", "", 0},
		{"url counts as fixed weight", "check https://example.com/a/very/long/path/that/keeps/going out", 6 + 23 + 4},
		{"cjk weighs double", "日本語", 6},
		{"mixed", "go 日本", 3 + 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeightedLength(tt.content))
		})
	}
}

func TestTokenizeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"single",
		"two words",
		"trailing space ",
		"  leading space",
		"tabs\tand\nnewlines preserved\n",
		"multiple   spaces   between",
	}

	for _, in := range inputs {
		assert.Equal(t, in, strings.Join(tokenize(in), ""), "tokenize must preserve input %q", in)
	}
}

func TestAutoSplitChunksFitAndConcatenate(t *testing.T) {
	content := strings.TrimRight(strings.Repeat("lorem ipsum dolor sit amet ", 40), " ")
	require.Greater(t, WeightedLength(content), twitterHardLimit)

	chunks, err := autoSplit(PlatformTwitter, content, twitterSafeLimit, twitterHardLimit, twitterMaxThreadSize)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, WeightedLength(c), twitterHardLimit, "chunk %d over the hard limit", i)
		assert.NotEmpty(t, c)
	}
	assert.Equal(t, content, strings.Join(chunks, ""))
}

func TestAutoSplitOversizedToken(t *testing.T) {
	// One unbroken token longer than the limit has no whitespace to
	// split on and must be cut character by character.
	content := strings.Repeat("a", 700)

	chunks, err := autoSplit(PlatformTwitter, content, twitterSafeLimit, twitterHardLimit, twitterMaxThreadSize)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, WeightedLength(c), twitterHardLimit)
	}
	assert.Equal(t, content, strings.Join(chunks, ""))
}

func TestAutoSplitSafeBoundary(t *testing.T) {
	// 52 five-character tokens plus one trailing rune: 261 weighted,
	// one past the safe limit.
	content := strings.Repeat("abcd ", 52) + "x"
	require.Equal(t, twitterSafeLimit+1, WeightedLength(content))

	chunks, err := autoSplit(PlatformTwitter, content, twitterSafeLimit, twitterHardLimit, twitterMaxThreadSize)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, WeightedLength(c), twitterHardLimit)
	}
	assert.Equal(t, content, strings.Join(chunks, ""))
}

func TestAutoSplitTooManyChunks(t *testing.T) {
	content := strings.Repeat("word ", 2000)

	_, err := autoSplit(PlatformTwitter, content, twitterSafeLimit, twitterHardLimit, twitterMaxThreadSize)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "thread_size", verr.Constraint)
}
