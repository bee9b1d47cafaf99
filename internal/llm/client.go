// Package llm provides a small client abstraction over vision-capable chat
// completion providers. Messages carry ordered multimodal content parts
// (text or base64-inlined images); providers translate them to their wire
// formats.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/webtriage/webtriage/internal/config"
)

// Provider represents different LLM providers.
type Provider string

const (
	Anthropic Provider = "anthropic"
	OpenAI    Provider = "openai"
)

// Content part types.
const (
	PartText  = "text"
	PartImage = "image"
)

// ContentPart is one element of a message: plain text or an inlined image.
type ContentPart struct {
	Type      string `json:"type"`                 // "text" or "image"
	Text      string `json:"text,omitempty"`
	ImageData string `json:"image_data,omitempty"` // base64 encoded image
	MediaType string `json:"media_type,omitempty"` // "image/png", "image/jpeg", ...
}

// Message is one role-tagged message with ordered content parts.
type Message struct {
	Role  string        `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart builds an inline image content part.
func ImagePart(data, mediaType string) ContentPart {
	return ContentPart{Type: PartImage, ImageData: data, MediaType: mediaType}
}

// UserMessage builds a user message from content parts.
func UserMessage(parts ...ContentPart) Message {
	return Message{Role: "user", Parts: parts}
}

// Client is the interface for chat completion.
type Client interface {
	// Complete submits the messages and returns the completion text.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// requestTimeout bounds a single completion call. Multimodal prompts with
// many screenshots can take a while.
const requestTimeout = 60 * time.Second

// NewClient creates a client for the configured provider.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch Provider(cfg.Provider) {
	case Anthropic:
		return newAnthropicClient(cfg), nil
	case OpenAI:
		return newOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
