package redact

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"
)

// ComprehendDetector delegates PII detection to AWS Comprehend, keeping
// only email and phone entities: those are the identifiers the source
// corpus actually leaks.
type ComprehendDetector struct {
	client *comprehend.Client
}

func NewComprehendDetector(client *comprehend.Client) *ComprehendDetector {
	return &ComprehendDetector{client: client}
}

var keptEntityTypes = map[types.PiiEntityType]bool{
	types.PiiEntityTypeEmail: true,
	types.PiiEntityTypePhone: true,
}

func (d *ComprehendDetector) Detect(ctx context.Context, text string) ([]Span, error) {
	out, err := d.client.DetectPiiEntities(ctx, &comprehend.DetectPiiEntitiesInput{
		Text:         aws.String(text),
		LanguageCode: types.LanguageCodeEn,
	})
	if err != nil {
		return nil, fmt.Errorf("comprehend detect pii failed: %w", err)
	}

	var spans []Span
	for _, entity := range out.Entities {
		if !keptEntityTypes[entity.Type] {
			continue
		}
		if entity.BeginOffset == nil || entity.EndOffset == nil {
			continue
		}
		spans = append(spans, Span{
			Begin: int(*entity.BeginOffset),
			End:   int(*entity.EndOffset),
		})
	}
	return spans, nil
}
