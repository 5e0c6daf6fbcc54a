// Package generate produces email drafts and lead lists. The mock
// generators stand in for real services with fixed delays and keep the
// same contract, so callers do not change when a real one is configured.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/config"
)

var ErrEmptyPrompt = errors.New("prompt is required")

// DraftGenerator writes an email draft from a prompt. token is the
// caller's access token, used by generators that call the backend.
type DraftGenerator interface {
	GenerateDraft(ctx context.Context, token, prompt string) (string, error)
}

// DraftPrompt builds the generation prompt for a campaign
func DraftPrompt(name, goal, audience, instructions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a short cold outreach email for the campaign %q.\n", name)
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	fmt.Fprintf(&b, "Audience: %s\n", audience)
	if s := strings.TrimSpace(instructions); s != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", s)
	}
	b.WriteString("Use {{first_name}} and {{company}} placeholders. Keep it under 120 words.")
	return b.String()
}

// MockDrafts returns a canned draft after a fixed delay
type MockDrafts struct {
	Delay time.Duration
}

const mockDraft = `Subject: Quick question, {{first_name}}

Hi {{first_name}},

I noticed {{company}} is growing fast and thought you might be dealing with the same outreach headaches our customers had before they switched.

We help teams like yours book more meetings without adding headcount. Would you be open to a 15 minute call next week to see if it fits?

Best,
{{sender_name}}`

func (m MockDrafts) GenerateDraft(ctx context.Context, token, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if err := sleep(ctx, m.Delay); err != nil {
		return "", err
	}
	return mockDraft, nil
}

// BackendDrafts calls the backend's generate-email function
type BackendDrafts struct {
	Client interface {
		GenerateEmail(ctx context.Context, token, prompt string) (*backend.GenerateEmailResponse, error)
	}
}

func (g BackendDrafts) GenerateDraft(ctx context.Context, token, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	resp, err := g.Client.GenerateEmail(ctx, token, prompt)
	if err != nil {
		return "", err
	}
	if resp.Draft == "" {
		return "", errors.New("generate-email returned an empty draft")
	}
	return resp.Draft, nil
}

// NewDraftGenerator builds the generator selected by cfg.Drafts
func NewDraftGenerator(ctx context.Context, cfg config.GenerateConfig, client *backend.Client) (DraftGenerator, error) {
	switch cfg.Drafts {
	case "", "mock":
		return MockDrafts{Delay: cfg.DraftDelay}, nil
	case "backend":
		return BackendDrafts{Client: client}, nil
	case "bedrock":
		return NewBedrockDrafts(ctx, cfg.AWSRegion, cfg.BedrockModel)
	default:
		return nil, fmt.Errorf("unknown draft generator %q", cfg.Drafts)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
