package awsx

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Clients bundles the AWS service clients the portal and the ingestion CLI
// use. All clients share one aws.Config; credentials come from the default
// chain (env, shared config, instance role).
type Clients struct {
	S3           *s3.Client
	BedrockAgent *bedrockagent.Client
	AgentRuntime *bedrockagentruntime.Client
	ModelRuntime *bedrockruntime.Client
	Comprehend   *comprehend.Client
}

func New(ctx context.Context, region string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config failed: %w", err)
	}
	return &Clients{
		S3:           s3.NewFromConfig(cfg),
		BedrockAgent: bedrockagent.NewFromConfig(cfg),
		AgentRuntime: bedrockagentruntime.NewFromConfig(cfg),
		ModelRuntime: bedrockruntime.NewFromConfig(cfg),
		Comprehend:   comprehend.NewFromConfig(cfg),
	}, nil
}
