package kb

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"zerotrust-rag/internal/access"
	"zerotrust-rag/internal/model"
)

// metadataKey is the document attribute the knowledge base filters on.
// Ingestion writes it into every object's metadata sidecar.
const metadataKey = "access_level"

const maxGenerationTokens = 1000

type Config struct {
	KnowledgeBaseID  string
	GenerationModel  string
	RetrievalResults int
}

// Client performs one retrieve call against the managed knowledge base and
// one generation call over whatever it returned. Embedding, vector search
// and filtering all happen on the service side; this client only forwards
// the role-derived filter and relays the response.
type Client struct {
	agentRuntime *bedrockagentruntime.Client
	modelRuntime *bedrockruntime.Client
	cfg          Config
}

func NewClient(agentRuntime *bedrockagentruntime.Client, modelRuntime *bedrockruntime.Client, cfg Config) *Client {
	if cfg.RetrievalResults <= 0 {
		cfg.RetrievalResults = 3
	}
	return &Client{
		agentRuntime: agentRuntime,
		modelRuntime: modelRuntime,
		cfg:          cfg,
	}
}

// Ask retrieves passages the caller's clearance may see and synthesizes an
// answer from them. Zero permitted passages, or a generation that signals
// it had nothing to work with, comes back as a denied Answer, not an error.
func (c *Client) Ask(ctx context.Context, role access.Role, levels []access.Level, query string) (*model.Answer, error) {
	out, err := c.agentRuntime.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(c.cfg.KnowledgeBaseID),
		RetrievalQuery: &agenttypes.KnowledgeBaseQuery{
			Text: aws.String(query),
		},
		RetrievalConfiguration: &agenttypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &agenttypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(int32(c.cfg.RetrievalResults)),
				Filter:          FilterForLevels(levels),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge base retrieve failed: %w", err)
	}

	if len(out.RetrievalResults) == 0 {
		return &model.Answer{
			Text:   "Access denied: no documents found matching your security clearance.",
			Denied: true,
		}, nil
	}

	var contextBuilder strings.Builder
	sources := make([]model.Source, 0, len(out.RetrievalResults))
	for _, result := range out.RetrievalResults {
		text := ""
		if result.Content != nil && result.Content.Text != nil {
			text = *result.Content.Text
		}
		location := ""
		if result.Location != nil && result.Location.S3Location != nil && result.Location.S3Location.Uri != nil {
			location = *result.Location.S3Location.Uri
		}
		sources = append(sources, model.Source{
			Location: location,
			Snippet:  text,
		})
		contextBuilder.WriteString(text)
		contextBuilder.WriteString("\n")
	}

	answerText, err := c.generate(ctx, role, contextBuilder.String(), query)
	if err != nil {
		return nil, err
	}

	return &model.Answer{
		Text:    answerText,
		Sources: sources,
		Denied:  IsDenialAnswer(answerText),
	}, nil
}

func (c *Client) generate(ctx context.Context, role access.Role, contextBlock, query string) (string, error) {
	prompt := fmt.Sprintf(
		"You are an internal corporate assistant.\n"+
			"The user is an authorized employee (%s).\n"+
			"Answer using the data below.\n"+
			"<context>%s</context>\n"+
			"Question: %s",
		role, contextBlock, query,
	)

	out, err := c.modelRuntime.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.cfg.GenerationModel),
		Messages: []runtimetypes.Message{
			{
				Role: runtimetypes.ConversationRoleUser,
				Content: []runtimetypes.ContentBlock{
					&runtimetypes.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: &runtimetypes.InferenceConfiguration{
			MaxTokens: aws.Int32(maxGenerationTokens),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}

	message, ok := out.Output.(*runtimetypes.ConverseOutputMemberMessage)
	if !ok || len(message.Value.Content) == 0 {
		return "", fmt.Errorf("empty generation output")
	}
	text, ok := message.Value.Content[0].(*runtimetypes.ContentBlockMemberText)
	if !ok || strings.TrimSpace(text.Value) == "" {
		return "", fmt.Errorf("generation returned no text")
	}
	return strings.TrimSpace(text.Value), nil
}

// FilterForLevels converts an allow-set into the retrieval filter the
// knowledge base applies before vector search: equals for a single level,
// in for several.
func FilterForLevels(levels []access.Level) agenttypes.RetrievalFilter {
	if len(levels) == 1 {
		return &agenttypes.RetrievalFilterMemberEquals{
			Value: agenttypes.FilterAttribute{
				Key:   aws.String(metadataKey),
				Value: document.NewLazyDocument(string(levels[0])),
			},
		}
	}
	values := make([]string, len(levels))
	for i, level := range levels {
		values[i] = string(level)
	}
	return &agenttypes.RetrievalFilterMemberIn{
		Value: agenttypes.FilterAttribute{
			Key:   aws.String(metadataKey),
			Value: document.NewLazyDocument(values),
		},
	}
}
