package kb

import "strings"

// Phrases the generation model produces when the retrieved context did not
// actually contain the asked-for information. Matching any of them turns
// the answer into a denial outcome so it is never cached and the caller is
// offered the access-request path.
var denialPhrases = []string{
	"cannot",
	"proprietary",
	"<redacted>",
	"not have",
	"no information",
	"context",
	"apologize",
}

// IsDenialAnswer reports whether the generated text signals insufficient
// permitted context rather than a real answer.
func IsDenialAnswer(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range denialPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
