package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/starford/xmledit/internal/apperr"
)

const (
	DefaultRegion       = "us-east-1"
	DefaultBedrockModel = "anthropic.claude-3-sonnet-20240229-v1:0"

	anthropicVersion = "bedrock-2023-05-31"
)

// invoker is the part of the bedrockruntime client Bedrock needs.
type invoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockConfig holds the settings of the Bedrock provider.
type BedrockConfig struct {
	Region          string
	ModelID         string
	AccessKeyID     string
	SecretAccessKey string
}

// Bedrock calls Anthropic models hosted on AWS Bedrock.
type Bedrock struct {
	client invoker
	model  string
	region string
}

var _ Completer = (*Bedrock)(nil)

// NewBedrock builds the provider. Without static credentials no client is
// created and Complete reports apperr.ErrNotConfigured.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (*Bedrock, error) {
	b := &Bedrock{model: cfg.ModelID, region: cfg.Region}
	if b.model == "" {
		b.model = DefaultBedrockModel
	}
	if b.region == "" {
		b.region = DefaultRegion
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return b, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(b.region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("ai: bedrock: load aws config: %w", err)
	}
	b.client = bedrockruntime.NewFromConfig(awsCfg)
	return b, nil
}

func (b *Bedrock) Configured() bool { return b.client != nil }
func (b *Bedrock) Model() string { return b.model }

// Region returns the AWS region calls are sent to.
func (b *Bedrock) Region() string { return b.region }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete implements Completer.
func (b *Bedrock) Complete(ctx context.Context, c Completion) (*Reply, error) {
	if b.client == nil {
		return nil, fmt.Errorf("ai: bedrock: %w: missing AWS credentials", apperr.ErrNotConfigured)
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        c.MaxTokens,
		Temperature:      c.Temperature,
		System:           c.System,
		Messages:         []anthropicMessage{{Role: "user", Content: c.Prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("ai: bedrock: encode request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: bedrock: invoke %s: %w", b.model, err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("ai: bedrock: decode response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, errors.New("ai: bedrock: empty response content")
	}

	return &Reply{
		Text:  resp.Content[0].Text,
		Model: b.model,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
