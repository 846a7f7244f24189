package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"docfill/types"
)

const defaultModelTimeout = 30 * time.Second

// Completer is the language-model collaborator. It has no behavioral
// contract beyond returning text: callers must re-validate everything.
type Completer interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type GenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

// OllamaClient выполняет генерацию текста через Ollama-совместимый API.
type OllamaClient struct {
	apiURL  string
	model   string
	timeout time.Duration
	client  *http.Client
}

func NewOllamaClient(apiURL, model string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = defaultModelTimeout
	}
	return &OllamaClient{
		apiURL:  apiURL,
		model:   model,
		timeout: timeout,
		client:  http.DefaultClient,
	}
}

func (c *OllamaClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	defer func() {
		fmt.Printf("[LLM] answer took %v\n", time.Since(start))
	}()

	reqBody, err := json.Marshal(GenerateRequest{
		Model:  c.model,
		System: system,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	count, _ := CountTokens(string(reqBody))
	fmt.Println("[LLM] prompt size in tokens:", count)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", types.ErrModelTimeout
		}
		return "", fmt.Errorf("%w: %v", types.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d, body: %s", types.ErrModelUnavailable, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", types.ErrModelTimeout
		}
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return genResp.Response, nil
	}

	// Потоковый ответ: соберём всё в строку
	type streamChunk struct {
		Response string `json:"response"`
	}
	var output string
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk streamChunk
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		output += chunk.Response
	}
	return output, nil
}
