package rules

import "regexp"

// Weighted length per the twitter-text configuration: any URL counts as
// a fixed 23 regardless of its real length, code points in the light
// ranges (most Latin text and common punctuation) weigh 1, everything
// else (CJK, emoji) weighs 2.

const urlWeight = 23

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

var lightRanges = [...][2]rune{
	{0, 4351},
	{8192, 8205},
	{8208, 8223},
	{8242, 8247},
}

func runeWeight(r rune) int {
	for _, rng := range lightRanges {
		if r >= rng[0] && r <= rng[1] {
			return 1
		}
	}
	return 2
}

// WeightedLength computes the platform-weighted length of s.
func WeightedLength(s string) int {
	total := 0
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(s, -1) {
		for _, r := range s[last:loc[0]] {
			total += runeWeight(r)
		}
		total += urlWeight
		last = loc[1]
	}
	for _, r := range s[last:] {
		total += runeWeight(r)
	}
	return total
}
