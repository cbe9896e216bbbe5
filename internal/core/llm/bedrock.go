package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/bedrock"
)

const (
	defaultBedrockRegion = "us-east-1"
	defaultBedrockModel  = "anthropic.claude-3-haiku-20240307-v1:0"
)

// BedrockConfig selects the region, model and credentials for the Bedrock
// namer. Empty fields use the AWS default chain.
type BedrockConfig struct {
	Region          string
	ModelID         string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
}

// BedrockProvider names sessions through a Bedrock-hosted chat model
type BedrockProvider struct {
	model   llms.Model
	modelID string
}

// NewBedrockProvider resolves AWS credentials and creates the Bedrock client
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = defaultBedrockRegion
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultBedrockModel
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, awsLoadOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	model, err := bedrock.New(
		bedrock.WithModel(cfg.ModelID),
		bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bedrock client: %w", err)
	}
	return &BedrockProvider{model: model, modelID: cfg.ModelID}, nil
}

func awsLoadOptions(cfg BedrockConfig) []func(*config.LoadOptions) error {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	return opts
}

// GenerateTitle implements Provider
func (p *BedrockProvider) GenerateTitle(ctx context.Context, req TitleRequest) (string, error) {
	return generateTitle(ctx, p.model, req)
}

// Name implements Provider
func (p *BedrockProvider) Name() string {
	return "bedrock:" + p.modelID
}

// generateTitle sends req to a langchaingo model as a system turn plus a
// human turn.
func generateTitle(ctx context.Context, model llms.Model, req TitleRequest) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Description),
	}
	resp, err := model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(req.MaxTokens),
		llms.WithTemperature(req.Temperature),
		llms.WithStopWords(req.Stop),
	)
	if err != nil {
		return "", fmt.Errorf("bedrock generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("bedrock returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
