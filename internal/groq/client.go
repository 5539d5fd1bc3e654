package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"intelbrief/backend/internal/config"
)

const maxErrorBodyBytes = 8 * 1024

const strictJSONReminder = "IMPORTANT: Output ONLY a single valid JSON object matching the expected schema. No prose, no extra text."

var ErrMissingAPIKey = errors.New("groq api key is not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	JSONOnly    bool
}

type completionAPIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionAPIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.Config, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return Client{
		apiKey:     strings.TrimSpace(cfg.GroqAPIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.GroqBaseURL), "/"),
		httpClient: httpClient,
	}
}

func (c Client) ChatCompletion(ctx context.Context, req Request) (string, Usage, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", Usage{}, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Model) == "" {
		return "", Usage{}, errors.New("model is required")
	}
	if len(req.Messages) == 0 {
		return "", Usage{}, errors.New("messages are required")
	}

	var format *responseFormat
	if req.JSONOnly {
		format = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(completionAPIRequest{
		Model:          strings.TrimSpace(req.Model),
		Messages:       req.Messages,
		Temperature:    req.Temperature,
		ResponseFormat: format,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshal groq request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", Usage{}, fmt.Errorf("build groq request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", Usage{}, fmt.Errorf("request groq: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", Usage{}, fmt.Errorf("groq returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed completionAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", Usage{}, fmt.Errorf("decode groq response: %w", err)
	}

	if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return "", Usage{}, errors.New(strings.TrimSpace(parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, errors.New("groq response contained no choices")
	}

	usage := Usage{}
	if parsed.Usage != nil {
		usage = Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		}
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), usage, nil
}

// CompleteJSON runs a JSON-mode completion and, when the reply cannot be
// parsed as a JSON object, retries once with a tightened system prompt at
// a lower temperature.
func (c Client) CompleteJSON(ctx context.Context, req Request) (string, Usage, error) {
	req.JSONOnly = true
	if req.Temperature > 0.5 {
		req.Temperature = 0.5
	}

	raw, usage, err := c.ChatCompletion(ctx, req)
	if err != nil {
		return "", usage, err
	}
	if looksLikeJSONObject(raw) {
		return raw, usage, nil
	}

	retry := req
	retry.Temperature = minFloat(req.Temperature, 0.3)
	retry.Messages = append([]Message{}, req.Messages...)
	for i := range retry.Messages {
		if retry.Messages[i].Role == "system" {
			retry.Messages[i].Content = retry.Messages[i].Content + "\n\n" + strictJSONReminder
		}
	}

	raw, retryUsage, err := c.ChatCompletion(ctx, retry)
	usage.PromptTokens += retryUsage.PromptTokens
	usage.CompletionTokens += retryUsage.CompletionTokens
	usage.TotalTokens += retryUsage.TotalTokens
	if err != nil {
		return "", usage, err
	}
	return raw, usage, nil
}

func looksLikeJSONObject(raw string) bool {
	value := strings.TrimSpace(raw)
	start := strings.Index(value, "{")
	end := strings.LastIndex(value, "}")
	if start == -1 || end <= start {
		return false
	}
	var probe map[string]json.RawMessage
	return json.Unmarshal([]byte(value[start:end+1]), &probe) == nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
