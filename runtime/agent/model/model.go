// Package model defines the provider-agnostic request/response types used by
// the Generator, Verifier, and Reviser to invoke a language model. It is
// intentionally narrow: planning and execution prompts are plain text turns,
// not multimodal conversations, so there is no image/document/citation
// machinery here.
package model

import (
	"context"
	"errors"
)

// ConversationRole is the role for a message in a conversation.
type ConversationRole string

const (
	// ConversationRoleSystem is the role for system messages.
	ConversationRoleSystem ConversationRole = "system"

	// ConversationRoleUser is the role for user messages.
	ConversationRoleUser ConversationRole = "user"

	// ConversationRoleAssistant is the role for assistant messages.
	ConversationRoleAssistant ConversationRole = "assistant"
)

type (
	// Message is a single plain-text turn in a conversation.
	Message struct {
		// Role identifies the speaker for this message.
		Role ConversationRole

		// Text is the message content.
		Text string
	}

	// TokenUsage tracks token counts for a model call.
	TokenUsage struct {
		// InputTokens is the number of tokens consumed by inputs.
		InputTokens int

		// OutputTokens is the number of tokens produced by outputs.
		OutputTokens int

		// TotalTokens is the total number of tokens consumed by the call.
		TotalTokens int
	}

	// Request captures inputs for a model invocation.
	Request struct {
		// ModelClass selects a model family appropriate for the call (e.g.
		// planning vs. fact-checking).
		ModelClass ModelClass

		// Messages is the ordered transcript provided to the model.
		Messages []Message

		// Temperature controls sampling when supported by the provider.
		Temperature float32

		// MaxTokens caps the number of output tokens when supported.
		MaxTokens int
	}

	// Response is the result of a model invocation.
	Response struct {
		// Text is the assistant's generated content.
		Text string

		// Usage reports token consumption for the request.
		Usage TokenUsage

		// StopReason records why generation stopped (provider-specific).
		StopReason string
	}

	// ModelClass identifies the model family. Provider adapters map these
	// classes to concrete model identifiers; the core never references a
	// vendor-specific model name directly.
	ModelClass string

	// Client is the provider-agnostic model client consumed by the
	// Generator, Verifier, and Reviser. Concrete implementations (backed by
	// whichever LLM vendor SDK the deployment wires in) are an external
	// collaborator supplied by the host application, not part of this
	// module.
	Client interface {
		// Complete performs a single text completion call.
		Complete(ctx context.Context, req *Request) (*Response, error)
	}
)

const (
	// ModelClassPlanner selects the model family used for plan generation
	// and revision.
	ModelClassPlanner ModelClass = "planner"

	// ModelClassFactCheck selects a model family used for Aletheia's
	// sandboxed fact-checking passes.
	ModelClassFactCheck ModelClass = "fact-check"

	// ModelClassDefault selects the default model family.
	ModelClassDefault ModelClass = "default"
)

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting after exhausting any configured retries. Callers must not retry
// in a tight loop and should treat this as a transient infrastructure
// failure that is safe to surface to higher layers.
var ErrRateLimited = errors.New("model: rate limited")
