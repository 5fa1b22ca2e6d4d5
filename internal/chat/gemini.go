package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GeminiProvider calls the Gemini generateContent REST API.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewGeminiProvider creates a Gemini REST client.
func NewGeminiProvider(apiKey, baseURL, model string, timeout time.Duration) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature *float32 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements Provider against the generateContent endpoint.
// Conversation roles map 1:1 onto Gemini content roles (user, model).
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (Result, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	payload := geminiRequest{
		Contents: make([]geminiContent, 0, len(req.Messages)),
	}
	for _, msg := range req.Messages {
		payload.Contents = append(payload.Contents, geminiContent{
			Role:  msg.Role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.Temperature != nil {
		payload.GenerationConfig = &geminiGenerationConfig{Temperature: req.Temperature}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read gemini response: %w", err)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil {
			return Result{}, fmt.Errorf("gemini status %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return Result{}, fmt.Errorf("gemini status %d", resp.StatusCode)
	}
	if len(decoded.Candidates) == 0 {
		return Result{}, fmt.Errorf("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return Result{
		Message: Message{Role: "model", Content: text.String()},
		Model:   model,
	}, nil
}
