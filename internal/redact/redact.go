package redact

import (
	"context"
	"fmt"
	"regexp"
	"sort"
)

// ReplacementToken is what every detected identifier becomes. Redaction is
// irreversible: only the redacted copy is ever uploaded.
const ReplacementToken = "<REDACTED>"

// Span marks a half-open rune range [Begin, End) of detected PII.
type Span struct {
	Begin int
	End   int
}

// Detector finds PII spans in text. The production implementation calls
// AWS Comprehend; tests substitute a fake.
type Detector interface {
	Detect(ctx context.Context, text string) ([]Span, error)
}

// Recognizer is a local high-confidence pattern that supplements the
// managed detector for formats it is known to miss.
type Recognizer struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultRecognizers covers the dashed North American phone format that
// slips past the managed model.
func DefaultRecognizers() []Recognizer {
	return []Recognizer{
		{
			Name:    "us_phone_dashed",
			Pattern: regexp.MustCompile(`\+1-\d{3}-\d{3}-\d{4}`),
		},
	}
}

// Redactor combines the managed detector with local recognizers and
// replaces every detected span with the replacement token.
type Redactor struct {
	detector    Detector
	recognizers []Recognizer
}

func NewRedactor(detector Detector, recognizers []Recognizer) *Redactor {
	return &Redactor{
		detector:    detector,
		recognizers: recognizers,
	}
}

func (r *Redactor) Redact(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	spans, err := r.detector.Detect(ctx, text)
	if err != nil {
		return "", fmt.Errorf("detect pii failed: %w", err)
	}
	spans = append(spans, r.recognizerSpans(text)...)
	if len(spans) == 0 {
		return text, nil
	}

	return applySpans(text, spans), nil
}

func (r *Redactor) recognizerSpans(text string) []Span {
	runes := []rune(text)
	// Map byte offsets from the regexp engine to rune offsets so they
	// compose with detector spans.
	byteToRune := make(map[int]int, len(runes)+1)
	byteIdx := 0
	for runeIdx, ch := range runes {
		byteToRune[byteIdx] = runeIdx
		byteIdx += len(string(ch))
	}
	byteToRune[byteIdx] = len(runes)

	var spans []Span
	for _, rec := range r.recognizers {
		for _, match := range rec.Pattern.FindAllStringIndex(text, -1) {
			begin, okB := byteToRune[match[0]]
			end, okE := byteToRune[match[1]]
			if !okB || !okE {
				continue
			}
			spans = append(spans, Span{Begin: begin, End: end})
		}
	}
	return spans
}

// applySpans replaces each span with the replacement token, working from
// the end of the text so earlier offsets stay valid. Overlapping spans are
// merged first.
func applySpans(text string, spans []Span) string {
	runes := []rune(text)
	merged := mergeSpans(spans, len(runes))

	for i := len(merged) - 1; i >= 0; i-- {
		s := merged[i]
		out := make([]rune, 0, len(runes))
		out = append(out, runes[:s.Begin]...)
		out = append(out, []rune(ReplacementToken)...)
		out = append(out, runes[s.End:]...)
		runes = out
	}
	return string(runes)
}

func mergeSpans(spans []Span, maxLen int) []Span {
	clamped := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Begin < 0 {
			s.Begin = 0
		}
		if s.End > maxLen {
			s.End = maxLen
		}
		if s.Begin >= s.End {
			continue
		}
		clamped = append(clamped, s)
	}
	sort.Slice(clamped, func(i, j int) bool {
		if clamped[i].Begin != clamped[j].Begin {
			return clamped[i].Begin < clamped[j].Begin
		}
		return clamped[i].End < clamped[j].End
	})

	var merged []Span
	for _, s := range clamped {
		if len(merged) > 0 && s.Begin <= merged[len(merged)-1].End {
			if s.End > merged[len(merged)-1].End {
				merged[len(merged)-1].End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
