// Package llm is the optional risk-escalation collaborator (§4.6, §6):
// a strict-schema chat-completion call, cached by (description_hash,
// prompt_version), that the risk stage only reaches when the rule stage
// is uncertain. Modeled on the chat-completion request/response shape
// used for LLM calls elsewhere in the retrieved pack, trimmed to the
// single structured-output use case this pipeline needs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// RiskLevel mirrors domain.RiskLevel without importing it, so this
// package stays a standalone capability boundary (§9 "Polymorphism").
type RiskLevel string

const (
	RiskGreen  RiskLevel = "green"
	RiskYellow RiskLevel = "yellow"
	RiskRed    RiskLevel = "red"
)

// Assessment is the strict-schema response shape from §6.
type Assessment struct {
	RiskLevel  RiskLevel `json:"risk_level"`
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"reasons"`
	Summary    string    `json:"summary"`
	BuyerNotes string    `json:"buyer_notes"`
}

func (a Assessment) valid() bool {
	switch a.RiskLevel {
	case RiskGreen, RiskYellow, RiskRed:
	default:
		return false
	}
	return a.Confidence >= 0 && a.Confidence <= 1
}

// Request is the input the risk stage sends (§6).
type Request struct {
	PromptVersion string
	Title         string
	Description   string
	Features      []string
}

// ErrUnavailable is returned for any deviation from the strict schema,
// a timeout, or a transport failure — the risk stage treats all of these
// identically as "llm_unavailable" (§4.6, §7: "never block the pipeline
// on LLM").
var ErrUnavailable = fmt.Errorf("llm: unavailable")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// Client calls the external chat-completion service and locally
// throttles the request rate (golang.org/x/time/rate), since the LLM
// collaborator's own rate limits are out of this core's control.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(endpoint, apiKey, model string, rps float64, httpClient *http.Client) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Assess invokes the structured risk prompt. Any deviation from the
// strict schema — malformed JSON, out-of-range confidence, unknown risk
// level, transport error, or context deadline — returns ErrUnavailable.
func (c *Client) Assess(ctx context.Context, req Request) (Assessment, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Assessment{}, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req.PromptVersion)},
			{Role: "user", Content: userPrompt(req)},
		},
	})
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return Assessment{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(data))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Assessment{}, fmt.Errorf("%w: decode envelope: %v", ErrUnavailable, err)
	}
	if len(out.Choices) == 0 {
		return Assessment{}, fmt.Errorf("%w: empty choices", ErrUnavailable)
	}

	assessment, err := parseAssessment(out.Choices[0].Message.Content)
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return assessment, nil
}

func parseAssessment(content string) (Assessment, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return Assessment{}, fmt.Errorf("no JSON object in response")
	}

	var a Assessment
	if err := json.Unmarshal([]byte(content[start:end+1]), &a); err != nil {
		return Assessment{}, fmt.Errorf("parse assessment JSON: %w", err)
	}
	if !a.valid() {
		return Assessment{}, fmt.Errorf("assessment failed schema validation: %+v", a)
	}
	return a, nil
}

func systemPrompt(promptVersion string) string {
	return fmt.Sprintf(`You are a fraud and risk triage assistant for used-car classifieds (prompt version %s).
Given a listing's title, description and features, decide a risk_level in {green,yellow,red},
a confidence in [0,1], a short list of reasons, a one-sentence summary, and buyer_notes.
Return ONLY a single JSON object with keys: risk_level, confidence, reasons, summary, buyer_notes.
No markdown, no commentary, no code fences.`, promptVersion)
}

func userPrompt(req Request) string {
	return fmt.Sprintf("Title: %s\nDescription: %s\nFeatures: %s", req.Title, req.Description, strings.Join(req.Features, ", "))
}
