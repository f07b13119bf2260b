// Package llm adjudicates candidate messages with an Azure OpenAI
// chat-completions deployment. The client sits behind a small interface
// so tests can substitute a fake.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	// MaxBodyChars caps the reply text sent to the model so a single
	// pathological message cannot blow the token limit.
	MaxBodyChars = 4000

	maxCompletionTokens = 500
	retryBackoff        = 2 * time.Second
)

// DefaultSystemPrompt and DefaultUserPrompt are used when no prompt
// files are supplied on the command line.
const (
	DefaultSystemPrompt = `You are an expert email analyzer. Determine if the email below is a genuine vacation/out-of-office response.

Respond with JSON only:
{"is_vacation_response": true/false, "confidence": 0.95, "reasoning": "brief explanation"}`

	DefaultUserPrompt = `Analyze this email and determine if it's a genuine vacation auto-response or absence notification.`
)

// ChatClient is the slice of the go-openai client the adjudicator needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Pricing holds the per-million-token prices used for cost accounting.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Email carries the fields of one message shown to the model.
type Email struct {
	From    string
	Date    string
	Subject string
	Body    string
}

// Verdict is the outcome of one adjudication. When Err is non-nil the
// remaining fields hold their zero values except Attempts.
type Verdict struct {
	IsMatch          bool
	Confidence       float64
	Reasoning        string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	Attempts         int
	Err              error
}

// Adjudicator sends one email at a time to the configured deployment
// and parses the strict-JSON verdict.
type Adjudicator struct {
	client       ChatClient
	deployment   string
	pricing      Pricing
	systemPrompt string
	userPrompt   string

	// Backoff is the wait between the first failed attempt and the
	// single retry. Tests set it to zero.
	Backoff time.Duration
}

// New builds an Adjudicator with the default prompts.
func New(client ChatClient, deployment string, pricing Pricing) *Adjudicator {
	return &Adjudicator{
		client:       client,
		deployment:   deployment,
		pricing:      pricing,
		systemPrompt: DefaultSystemPrompt,
		userPrompt:   DefaultUserPrompt,
		Backoff:      retryBackoff,
	}
}

// SetPrompts replaces the default prompts with operator-supplied text.
func (a *Adjudicator) SetPrompts(system, user string) {
	if system != "" {
		a.systemPrompt = system
	}
	if user != "" {
		a.userPrompt = user
	}
}

// NewAzureClient builds the real go-openai client for an Azure
// endpoint.
func NewAzureClient(endpoint, apiKey, apiVersion string) *openai.Client {
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}
	return openai.NewClientWithConfig(cfg)
}

type verdictJSON struct {
	IsVacationResponse *bool    `json:"is_vacation_response"`
	Confidence         *float64 `json:"confidence"`
	Reasoning          string   `json:"reasoning"`
}

// Classify asks the model whether the email is a genuine absence
// notification. A failed call is retried exactly once after Backoff;
// a second failure yields a Verdict with Err set, IsMatch false and
// Confidence zero. Classify never returns a Go error itself so the
// batch loop can route failures like any other outcome.
func (a *Adjudicator) Classify(ctx context.Context, email Email) Verdict {
	req := a.buildRequest(email)

	var lastErr error
	attempts := 0
	for attempts < 2 {
		attempts++
		verdict, err := a.callOnce(ctx, req)
		if err == nil {
			verdict.Attempts = attempts
			return verdict
		}
		lastErr = err
		if attempts < 2 {
			slog.Warn("classifier call failed, retrying", "attempt", attempts, "error", err)
			if werr := wait(ctx, a.Backoff); werr != nil {
				return Verdict{Attempts: attempts, Err: werr}
			}
		}
	}
	return Verdict{Attempts: attempts, Err: lastErr}
}

func (a *Adjudicator) buildRequest(email Email) openai.ChatCompletionRequest {
	userMessage := fmt.Sprintf(`%s

EMAIL TO ANALYZE:
From: %s
Date: %s
Subject: %s

%s

Respond with JSON only:
{"is_vacation_response": true/false, "confidence": 0.95, "reasoning": "brief explanation"}`,
		a.userPrompt, email.From, email.Date, email.Subject, TruncateBody(email.Body))

	return openai.ChatCompletionRequest{
		Model: a.deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
		MaxTokens:   maxCompletionTokens,
	}
}

func (a *Adjudicator) callOnce(ctx context.Context, req openai.ChatCompletionRequest) (Verdict, error) {
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Verdict{}, err
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, fmt.Errorf("empty response from model")
	}

	var parsed verdictJSON
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return Verdict{}, fmt.Errorf("parsing model response: %w", err)
	}
	if parsed.IsVacationResponse == nil || parsed.Confidence == nil {
		return Verdict{}, fmt.Errorf("invalid JSON structure from model")
	}

	in := resp.Usage.PromptTokens
	out := resp.Usage.CompletionTokens
	return Verdict{
		IsMatch:          *parsed.IsVacationResponse,
		Confidence:       *parsed.Confidence,
		Reasoning:        parsed.Reasoning,
		PromptTokens:     in,
		CompletionTokens: out,
		CostUSD:          a.pricing.Cost(in, out),
	}, nil
}

// Cost converts a token count into US dollars.
func (p Pricing) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1_000_000*p.InputPerMillion +
		float64(completionTokens)/1_000_000*p.OutputPerMillion
}

// TruncateBody caps text at MaxBodyChars without splitting a rune.
func TruncateBody(text string) string {
	if len(text) <= MaxBodyChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= MaxBodyChars {
		return text
	}
	return string(runes[:MaxBodyChars])
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
