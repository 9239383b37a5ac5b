// Package cloudcode implements the upstream Cloud Code client: request
// dispatch with account rotation, endpoint fallback and model fallback.
package cloudcode

import (
	"regexp"
	"strconv"
)

// "reset after ..." duration shapes seen in upstream 429 bodies, most
// specific first so "1h2m3s" is not consumed by the bare-hour pattern.
var resetPatterns = []struct {
	re     *regexp.Regexp
	groups [3]int64 // multipliers in ms for each captured group
}{
	{regexp.MustCompile(`(?i)reset after (\d+)h(\d+)m(\d+)s`), [3]int64{3600000, 60000, 1000}},
	{regexp.MustCompile(`(?i)reset after (\d+)h(\d+)m`), [3]int64{3600000, 60000, 0}},
	{regexp.MustCompile(`(?i)reset after (\d+)m(\d+)s`), [3]int64{60000, 1000, 0}},
	{regexp.MustCompile(`(?i)reset after (\d+)h`), [3]int64{3600000, 0, 0}},
	{regexp.MustCompile(`(?i)reset after (\d+)m`), [3]int64{60000, 0, 0}},
	{regexp.MustCompile(`(?i)reset after (\d+)s`), [3]int64{1000, 0, 0}},
}

// ParseResetTime extracts a "reset after XhYmZs" hint from an upstream error
// body and returns it in milliseconds, or nil when no hint is present.
func ParseResetTime(errorText string) *int64 {
	for _, pattern := range resetPatterns {
		match := pattern.re.FindStringSubmatch(errorText)
		if match == nil {
			continue
		}
		var ms int64
		for i, mult := range pattern.groups {
			if mult == 0 || i+1 >= len(match) {
				break
			}
			n, err := strconv.ParseInt(match[i+1], 10, 64)
			if err != nil {
				return nil
			}
			ms += n * mult
		}
		return &ms
	}
	return nil
}
