package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	draftMaxTokens   = 1024
	draftSystem      = "You write concise, friendly B2B cold outreach emails. Reply with the email only, starting with a Subject line."
)

type modelInvoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type bedrockContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockResponse struct {
	Content    []bedrockContent `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// BedrockDrafts writes drafts with an Anthropic model on AWS Bedrock
type BedrockDrafts struct {
	client  modelInvoker
	modelID string
}

// NewBedrockDrafts loads the default AWS credential chain for region
func NewBedrockDrafts(ctx context.Context, region, modelID string) (*BedrockDrafts, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	slog.Info("bedrock draft generator initialized", "model", modelID, "region", region)
	return &BedrockDrafts{client: bedrockruntime.NewFromConfig(cfg), modelID: modelID}, nil
}

func (g *BedrockDrafts) GenerateDraft(ctx context.Context, token, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        draftMaxTokens,
		System:           draftSystem,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockContent{{Type: "text", Text: prompt}},
		}},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke failed: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse bedrock response: %w", err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("bedrock returned no text (stop reason %s)", resp.StopReason)
	}

	slog.Debug("draft generated", "model", g.modelID,
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	return strings.TrimSpace(text.String()), nil
}
