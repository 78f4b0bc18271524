// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// messagesServer fakes the Messages API, replying with text.
func messagesServer(t *testing.T, status int, text string, gotPrompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		body, _ := io.ReadAll(r.Body)
		if gotPrompt != nil {
			*gotPrompt = string(body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`)
			return
		}
		reply, _ := json.Marshal(text)
		fmt.Fprintf(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":%s}],"stop_reason":"end_turn",
			"usage":{"input_tokens":10,"output_tokens":5}}`, reply)
	}))
}

func TestNewClaudeBackendNeedsKey(t *testing.T) {
	_, err := NewClaudeBackend(types.AIConfig{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestClaudePolarity(t *testing.T) {
	var prompt string
	srv := messagesServer(t, http.StatusOK, `{"polarity": 0.75}`, &prompt)
	defer srv.Close()

	b, err := NewClaudeBackend(types.AIConfig{APIKey: "test-key", Model: "claude-test"}, option.WithBaseURL(srv.URL))
	require.NoError(t, err)

	got, err := b.Polarity(context.Background(), "Busy day at the bakery")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-9)
	assert.Contains(t, prompt, "Busy day at the bakery")
	assert.Contains(t, prompt, `"model":"claude-test"`)
	assert.Equal(t, "claude", b.Name())
}

func TestClaudePolarityAPIError(t *testing.T) {
	srv := messagesServer(t, http.StatusInternalServerError, "", nil)
	defer srv.Close()

	b, err := NewClaudeBackend(types.AIConfig{APIKey: "test-key"}, option.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = b.Polarity(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calling Claude API")
}

func TestParsePolarity(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    float64
		wantErr bool
	}{
		{name: "plain", reply: `{"polarity": -0.4}`, want: -0.4},
		{name: "fenced", reply: "```json\n{\"polarity\": 0.2}\n```", want: 0.2},
		{name: "with prose", reply: `Here you go: {"polarity": 1} hope that helps`, want: 1},
		{name: "clamped", reply: `{"polarity": 3.5}`, want: 1},
		{name: "no json", reply: "positive", wantErr: true},
		{name: "missing field", reply: `{"score": 0.3}`, wantErr: true},
		{name: "bad json", reply: `{"polarity": }`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePolarity(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestPolarityPromptMentionsFormat(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, polarityPromptTmpl.Execute(&buf, struct{ Post string }{Post: "hello"}))
	assert.Contains(t, buf.String(), `{"polarity": <number>}`)
	assert.Contains(t, buf.String(), "hello")
}
