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

	"github.com/finquery/finquery/internal/entities"
	"github.com/finquery/finquery/internal/templates"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
	client      *http.Client
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-5"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &OpenAIClient{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (c *OpenAIClient) SelectTemplate(ctx context.Context, question string, ents entities.Entities, candidates []templates.Template) (TemplateSelection, error) {
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return TemplateSelection{}, fmt.Errorf("marshal template candidates: %w", err)
	}
	entitiesJSON, err := json.Marshal(ents)
	if err != nil {
		return TemplateSelection{}, fmt.Errorf("marshal entities: %w", err)
	}

	systemPrompt := "You select the best SQL query template for a financial question about SEC filings. " +
		"Respond with JSON only: {\"selected_template_id\": string or null, \"confidence\": number, " +
		"\"reasoning\": string, \"use_custom_sql\": bool, \"parameter_mapping\": object}. " +
		"Set use_custom_sql to true and selected_template_id to null when no candidate fits."
	userPrompt := fmt.Sprintf(
		"Question:\n%s\n\nExtracted entities (JSON):\n%s\n\nCandidate templates (JSON):\n%s",
		strings.TrimSpace(question), string(entitiesJSON), string(candidatesJSON),
	)

	var selection TemplateSelection
	if err := c.callJSON(ctx, systemPrompt, userPrompt, &selection); err != nil {
		return TemplateSelection{}, fmt.Errorf("select template: %w", err)
	}
	if selection.ParameterMapping == nil {
		selection.ParameterMapping = map[string]string{}
	}
	return selection, nil
}

func (c *OpenAIClient) GenerateSQL(ctx context.Context, question string, ents entities.Entities, schemaMarkdown string, hints SynthesisHints) (SQLGeneration, error) {
	entitiesJSON, err := json.Marshal(ents)
	if err != nil {
		return SQLGeneration{}, fmt.Errorf("marshal entities: %w", err)
	}
	hintsJSON, err := json.Marshal(hints)
	if err != nil {
		return SQLGeneration{}, fmt.Errorf("marshal synthesis hints: %w", err)
	}

	systemPrompt := "You write a single DuckDB SQL query answering a financial question over SEC EDGAR data. " +
		"Use only the documented tables. Never reference num.cik; join num through sub. " +
		"Respond with JSON only: {\"sql\": string, \"explanation\": string}."
	userPrompt := fmt.Sprintf(
		"Question:\n%s\n\nExtracted entities (JSON):\n%s\n\nDomain hints (JSON):\n%s\n\nSchema:\n%s",
		strings.TrimSpace(question), string(entitiesJSON), string(hintsJSON), schemaMarkdown,
	)

	var generation SQLGeneration
	if err := c.callJSON(ctx, systemPrompt, userPrompt, &generation); err != nil {
		return SQLGeneration{}, fmt.Errorf("generate sql: %w", err)
	}
	generation.SQL = stripMarkdownSQL(generation.SQL)
	return generation, nil
}

func (c *OpenAIClient) ValidateSQL(ctx context.Context, sql, question string, ents entities.Entities, schemaMarkdown string) (Verdict, error) {
	entitiesJSON, err := json.Marshal(ents)
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal entities: %w", err)
	}

	systemPrompt := "You judge whether a SQL query correctly answers a financial question over SEC EDGAR data. " +
		"Respond with JSON only: {\"is_valid\": bool, \"reason\": string or null, \"confidence\": number}."
	userPrompt := fmt.Sprintf(
		"Question:\n%s\n\nSQL:\n%s\n\nExtracted entities (JSON):\n%s\n\nSchema:\n%s",
		strings.TrimSpace(question), strings.TrimSpace(sql), string(entitiesJSON), schemaMarkdown,
	)

	var verdict Verdict
	if err := c.callJSON(ctx, systemPrompt, userPrompt, &verdict); err != nil {
		return Verdict{}, fmt.Errorf("validate sql: %w", err)
	}
	return verdict, nil
}

// callJSON performs the chat completion and decodes the JSON body of the
// first choice into out, retrying malformed responses and transport failures
// with increasing delay. Exhaustion wraps ErrUnavailable.
func (c *OpenAIClient) callJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	var lastErr error
	delay := c.retryDelay
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		content, err := c.chat(ctx, systemPrompt, userPrompt)
		if err != nil {
			lastErr = err
			continue
		}
		if err := json.Unmarshal([]byte(extractJSON(content)), out); err != nil {
			lastErr = fmt.Errorf("decode model response: %w", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *OpenAIClient) chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractJSON strips markdown fences and surrounding prose from a model
// response that should contain one JSON object.
func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	if start := strings.IndexByte(trimmed, '{'); start >= 0 {
		if end := strings.LastIndexByte(trimmed, '}'); end > start {
			return trimmed[start : end+1]
		}
	}
	return trimmed
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
