// Package providers holds the outward-facing collaborators of the pipeline:
// the LLM text generators, speech synthesis, transcription, and stock
// footage download.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"clipforge/config"
	"clipforge/logging"
)

var log = logging.GetLogger()

// LLMClient talks to an OpenAI-compatible chat completions endpoint.
type LLMClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewLLMClient(cfg *config.Config) *LLMClient {
	return &LLMClient{
		baseURL: strings.TrimRight(cfg.LLMBaseURL, "/"),
		apiKey:  cfg.LLMAPIKey,
		model:   cfg.LLMModel,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *LLMClient) chat(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("llm response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

const scriptPromptTemplate = `# Role: Video Script Generator

## Goals:
Generate a script for a video, depending on the subject of the video.

## Constrains:
1. the script is to be returned as a string with the specified number of paragraphs.
2. do not under any circumstance reference this prompt in your response.
3. get straight to the point, don't start with unnecessary things like, "welcome to this video".
4. you must not include any type of markdown or formatting in the script, never use a title.
5. only return the raw content of the script.
6. do not include "voiceover", "narrator" or similar indicators of what should be spoken at the beginning of each paragraph or line.
7. you must not mention the prompt, or anything about the script itself. also, never talk about the amount of paragraphs or lines. just write the script.
8. respond in the same language as the video subject.

# Initialization:
- video subject: %s
- number of paragraphs: %d
`

// GenerateScript asks the model for a narration script.
func (c *LLMClient) GenerateScript(ctx context.Context, subject, language string, paragraphs int) (string, error) {
	prompt := fmt.Sprintf(scriptPromptTemplate, subject, paragraphs)
	if language != "" {
		prompt += fmt.Sprintf("- respond in: %s\n", language)
	}

	raw, err := c.chat(ctx, prompt)
	if err != nil {
		return "", err
	}
	return cleanScript(raw), nil
}

var markdownRe = regexp.MustCompile("[*#>`]+")

// cleanScript strips the formatting models sneak in despite instructions.
func cleanScript(s string) string {
	s = markdownRe.ReplaceAllString(s, "")
	s = strings.Trim(s, "\"' \n\t")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

const termsPromptTemplate = `# Role: Video Search Terms Generator

## Goals:
Generate %d search terms for stock videos, depending on the subject of a video.

## Constrains:
1. the search terms are to be returned as a json-array of strings.
2. each search term should consist of 1-3 words, always add the main subject of the video.
3. you must only return the json-array of strings. you must not return anything else. you must not return the script.
4. the search terms must be related to the subject of the video.
5. reply with english search terms only.

## Output Example:
["search term 1", "search term 2", "search term 3"]

## Context:
### Video Subject
%s

### Video Script
%s
`

// GenerateTerms asks the model for stock footage search terms.
func (c *LLMClient) GenerateTerms(ctx context.Context, subject, script string, amount int) ([]string, error) {
	raw, err := c.chat(ctx, fmt.Sprintf(termsPromptTemplate, amount, subject, script))
	if err != nil {
		return nil, err
	}

	terms, err := parseTermsJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse terms from llm response: %w", err)
	}
	return terms, nil
}

// parseTermsJSON extracts a JSON string array from a model response that may
// wrap it in prose or code fences.
func parseTermsJSON(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no json array in %q", raw)
	}

	var terms []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &terms); err != nil {
		return nil, err
	}

	out := terms[:0]
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}
