package rules

import (
	"regexp"
	"strings"
)

// Auto-split packs whitespace-delimited tokens into chunks under a safe
// limit held below the hard limit. Packing under the safe limit can
// still under-estimate the true weighted cost of a chunk, so every chunk
// is re-validated against the hard limit and the safe limit is shrunk
// and the content re-packed for a bounded number of attempts.

const (
	maxSplitAttempts = 3
	splitShrinkStep  = 20
)

var tokenPattern = regexp.MustCompile(`\S+\s*`)

// tokenize splits s into tokens carrying their trailing spacing, so that
// the concatenation of all tokens reproduces s exactly.
func tokenize(s string) []string {
	tokens := tokenPattern.FindAllString(s, -1)
	if tokens == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	// Re-attach any leading whitespace to the first token.
	if i := strings.Index(s, tokens[0]); i > 0 {
		tokens[0] = s[:i] + tokens[0]
	}
	return tokens
}

// hardSplit cuts a single token that exceeds the limit character by
// character, shrinking each piece until the weighted check passes.
func hardSplit(token string, limit int) []string {
	var pieces []string
	var cur strings.Builder
	for _, r := range token {
		if cur.Len() > 0 && WeightedLength(cur.String()+string(r)) > limit {
			pieces = append(pieces, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		pieces = append(pieces, cur.String())
	}
	return pieces
}

func packTokens(content string, limit int) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, token := range tokenize(content) {
		if WeightedLength(strings.TrimRight(token, " \t\n")) > limit {
			flush()
			pieces := hardSplit(token, limit)
			for _, p := range pieces[:len(pieces)-1] {
				chunks = append(chunks, p)
			}
			cur.WriteString(pieces[len(pieces)-1])
			continue
		}
		if cur.Len() > 0 && WeightedLength(cur.String()+token) > limit {
			flush()
		}
		cur.WriteString(token)
	}
	flush()
	return chunks
}

// autoSplit produces an ordered list of chunks each of which passes the
// platform's hard weighted-length check. The chunks concatenate to the
// original content exactly.
func autoSplit(platform, content string, safeLimit, hardLimit, maxChunks int) ([]string, error) {
	limit := safeLimit
	for attempt := 0; attempt < maxSplitAttempts && limit > 0; attempt++ {
		chunks := packTokens(content, limit)

		valid := true
		for _, c := range chunks {
			if WeightedLength(c) > hardLimit {
				valid = false
				break
			}
		}
		if !valid {
			limit -= splitShrinkStep
			continue
		}

		if len(chunks) > maxChunks {
			return nil, violation(platform, "thread_size",
				"content splits into %d chunks, the maximum thread size is %d", len(chunks), maxChunks)
		}
		return chunks, nil
	}
	return nil, violation(platform, "length",
		"content could not be split into chunks under the %d weighted-length limit", hardLimit)
}
