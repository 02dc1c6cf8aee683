// Package openrouter adapts the OpenRouter chat completion API, which speaks
// the OpenAI wire protocol, to ports.CompletionProvider.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mentalcompass/platform/internal/core/domain"
	"github.com/mentalcompass/platform/internal/core/ports"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	appTitle       = "MentalCompass"

	temperature = 0.7
	maxTokens   = 500
)

// Config holds the provider credentials and attribution headers.
type Config struct {
	APIKey  string
	BaseURL string
	Referer string
}

// Client implements ports.CompletionProvider.
type Client struct {
	api *openai.Client
}

// New returns a Client, or nil when no API key is configured.
func New(cfg Config) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = base
	oc.HTTPClient = &http.Client{Transport: &headerTransport{
		base:    http.DefaultTransport,
		referer: cfg.Referer,
	}}
	return &Client{api: openai.NewClientWithConfig(oc)}
}

// Complete sends turns to model and returns the first choice's content. An
// empty string with a nil error means the model answered with nothing.
func (c *Client) Complete(ctx context.Context, model string, turns []domain.ChatTurn) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", normalizeError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// normalizeError converts SDK errors into *ports.ProviderError so callers can
// classify them without importing the SDK.
func normalizeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ports.ProviderError{
			Status:  apiErr.HTTPStatusCode,
			Code:    codeString(apiErr.Code),
			Message: apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.HTTPStatus
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &ports.ProviderError{Status: reqErr.HTTPStatusCode, Message: msg}
	}
	return err
}

func codeString(code any) string {
	switch v := code.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// headerTransport adds the attribution headers OpenRouter uses for app rankings.
type headerTransport struct {
	base    http.RoundTripper
	referer string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	req.Header.Set("X-Title", appTitle)
	return t.base.RoundTrip(req)
}
