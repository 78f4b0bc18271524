// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// DefaultClaudeModel is used when AIConfig.Model is empty.
const DefaultClaudeModel = "claude-sonnet-4-5"

// ErrNoAPIKey is returned when the Claude backend has no key configured.
var ErrNoAPIKey = errors.New("claude backend needs an API key")

var polarityPromptTmpl = template.Must(template.New("polarity").Parse(`You score the sentiment of social media posts written by small business owners.

Rate the overall polarity of the post below on a scale from -1.0 (very negative) to 1.0 (very positive), where 0.0 is neutral.

Respond with a JSON object of the form {"polarity": <number>}. Do not include any text outside the JSON object.

Post:
{{.Post}}
`))

// ClaudeBackend scores polarity with the Anthropic Messages API.
type ClaudeBackend struct {
	client anthropic.Client
	model  string
}

// NewClaudeBackend creates a backend from cfg. Extra options (such as a base
// URL in tests) are appended to the client options. The SDK's own retries
// are disabled because the Analyzer retries.
func NewClaudeBackend(cfg types.AIConfig, opts ...option.RequestOption) (*ClaudeBackend, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	model := cfg.Model
	if model == "" {
		model = DefaultClaudeModel
	}
	all := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &ClaudeBackend{client: anthropic.NewClient(all...), model: model}, nil
}

func (c *ClaudeBackend) Name() string { return "claude" }

// Polarity asks the model for a polarity and parses the JSON reply.
func (c *ClaudeBackend) Polarity(ctx context.Context, text string) (float64, error) {
	var prompt bytes.Buffer
	if err := polarityPromptTmpl.Execute(&prompt, struct{ Post string }{Post: text}); err != nil {
		return 0, fmt.Errorf("rendering prompt: %w", err)
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 64,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.String())),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("calling Claude API: %w", err)
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return 0, fmt.Errorf("no text content in Claude API response")
	}
	return parsePolarity(reply.String())
}

// parsePolarity extracts {"polarity": x} from a reply that may wrap the
// object in prose or a code fence.
func parsePolarity(reply string) (float64, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return 0, fmt.Errorf("no JSON object in reply %q", reply)
	}
	var out struct {
		Polarity *float64 `json:"polarity"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &out); err != nil {
		return 0, fmt.Errorf("parsing polarity JSON: %w", err)
	}
	if out.Polarity == nil {
		return 0, fmt.Errorf("reply has no polarity field: %q", reply)
	}
	return clamp(*out.Polarity), nil
}
