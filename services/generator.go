package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const systemInstruction = "You are a learning material generator that generates learning materials based on the user's prompt." +
	" You will generate a list of 3-5 questions and answers that the user can use to learn the content." +
	" Always generate multiple questions (at least 3) to provide comprehensive coverage of the topic."

// Generator turns a free-text prompt into a validated course payload.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*CoursePayload, error)
}

type GenerationRequest struct {
	Prompt   string
	Endpoint string
	APIKey   string
	Model    string
}

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint with a
// strict JSON schema response format.
type OpenAIGenerator struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	model    string
}

func NewOpenAIGenerator(endpoint, apiKey, model string, timeout time.Duration) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:   resty.New().SetTimeout(timeout),
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chatCompletionError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerationRequest) (*CoursePayload, error) {
	endpoint := firstNonEmpty(req.Endpoint, g.endpoint)
	apiKey := firstNonEmpty(req.APIKey, g.apiKey)
	model := firstNonEmpty(req.Model, g.model)

	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrAuthentication)
	}

	target, err := completionsURL(endpoint)
	if err != nil {
		return nil, err
	}

	body := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: req.Prompt},
		},
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "create_course_input",
				"strict": true,
				"schema": coursePayloadSchema(),
			},
		},
	}

	var out chatCompletionResponse
	var apiErr chatCompletionError
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post(target)
	if err != nil {
		return nil, fmt.Errorf("%w: request to %s: %v", ErrGeneration, target, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrAuthentication, apiErrorMessage(&apiErr, resp))
	case resp.IsError():
		return nil, fmt.Errorf("%w: status %d: %s", ErrGeneration, status, apiErrorMessage(&apiErr, resp))
	}

	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", ErrGeneration)
	}

	message := out.Choices[0].Message
	if message.Refusal != "" {
		return nil, fmt.Errorf("%w: model refused: %s", ErrGeneration, message.Refusal)
	}
	if strings.TrimSpace(message.Content) == "" {
		return nil, fmt.Errorf("%w: empty response content", ErrGeneration)
	}

	var payload CoursePayload
	if err := json.Unmarshal([]byte(message.Content), &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed response content: %v", ErrGeneration, err)
	}

	if err := ValidatePayload(&payload); err != nil {
		log.Printf("Generated course failed validation: %v", err)
		return nil, err
	}

	return &payload, nil
}

func completionsURL(endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: invalid endpoint %q", ErrGeneration, endpoint)
	}
	return strings.TrimRight(u.String(), "/") + "/chat/completions", nil
}

func apiErrorMessage(apiErr *chatCompletionError, resp *resty.Response) string {
	if apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	if s := strings.TrimSpace(resp.String()); s != "" {
		return s
	}
	return resp.Status()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func coursePayloadSchema() map[string]any {
	str := func(description string) map[string]any {
		return map[string]any{"type": "string", "description": description}
	}

	question := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": str("The content of the question. It could be a complete question, single word, sentence, fill-in-the-blank, etc."),
			"answer":   str("The answer to the question. It should be one of the choices."),
			"choices": map[string]any{
				"type":        "array",
				"description": "A list of 2-4 choices. The answer should be one of the choices.",
				"items":       map[string]any{"type": "string"},
				"minItems":    2,
				"maxItems":    4,
			},
			"explanation": str("A brief explanation of the question and answer. If it's a tricky/confusing/difficult question, provide a detailed explanation."),
			"difficulty": map[string]any{
				"type":        "integer",
				"description": "The difficulty of the question. 1 is the easiest, 5 is the hardest.",
				"minimum":     1,
				"maximum":     5,
			},
		},
		"required":             []string{"question", "answer", "choices", "explanation", "difficulty"},
		"additionalProperties": false,
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"questions": map[string]any{
				"type":        "array",
				"description": "A list of 3-5 questions. Must contain at least 3 questions.",
				"items":       question,
			},
		},
		"required":             []string{"name", "description", "questions"},
		"additionalProperties": false,
	}
}
