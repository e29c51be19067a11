// Package narrative calls an external chat-completion service to turn a
// patient's canonical records into clinician and patient narratives. The
// contract is strict: the service must answer with the exact JSON shape
// below, and any failure (transport, status, malformed body, missing
// fields) is reported to the caller so it can fall back to deterministic
// synthesis. The disclaimer is never delegated to the external service.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const systemPrompt = "You are a medical data analyst. Always respond with valid JSON only."

const promptTemplate = `You are a medical data analyst. Analyze the following patient medical records from multiple hospitals.

IMPORTANT RULES:
1. You CANNOT delete or exclude any data - only analyze what's provided
2. Flag any anomalies (duplicates, missing dates, outliers) but do not remove them
3. Include a disclaimer that this is not medical advice

Records:
%s

Provide your analysis in the following JSON format:
{
    "clinician_summary": "Bullet-point clinical summary for healthcare providers with key findings, trends, and concerns",
    "patient_summary": "Plain language explanation for the patient about their health data",
    "anomalies": [
        {"type": "anomaly type", "description": "description", "severity": "low/medium/high"}
    ]
}

Focus on:
- Vital trends (BMI, blood pressure)
- Lab results (cholesterol, A1C, kidney function)
- Medication history and potential interactions
- Any data quality issues or discrepancies between hospitals
`

// Anomaly is a model-reported finding. Unlike detector anomalies it never
// carries an origin entry.
type Anomaly struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Result is the parsed narrative response.
type Result struct {
	ClinicianSummary string    `json:"clinician_summary"`
	PatientSummary   string    `json:"patient_summary"`
	Anomalies        []Anomaly `json:"anomalies"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client talks to a chat-completion compatible narrative service.
type Client struct {
	httpClient *resty.Client
	model      string
	logger     zerolog.Logger
}

// NewClient builds a narrative client against the given base URL. The
// timeout bounds each attempt; transient failures are retried twice before
// the caller's fallback takes over.
func NewClient(baseURL, apiKey, model string, timeout time.Duration, logger zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if apiKey != "" {
		httpClient.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return &Client{
		httpClient: httpClient,
		model:      model,
		logger:     logger,
	}
}

// GenerateSummaries sends the formatted record text to the narrative service
// and parses the strict response shape. recordsText is the caller-formatted
// canonical record dump.
func (c *Client) GenerateSummaries(ctx context.Context, recordsText string) (*Result, error) {
	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(promptTemplate, recordsText)},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	}

	var response chatResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/chat/completions")

	if err != nil {
		c.logger.Warn().Err(err).Msg("narrative API call failed")
		return nil, fmt.Errorf("calling narrative API: %w", err)
	}

	if resp.IsError() {
		c.logger.Warn().Int("status", resp.StatusCode()).Msg("narrative API returned error status")
		return nil, fmt.Errorf("narrative API returned status %d", resp.StatusCode())
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("narrative API returned no choices")
	}

	content := stripFences(response.Choices[0].Message.Content)

	var result Result
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parsing narrative response: %w", err)
	}

	if result.ClinicianSummary == "" || result.PatientSummary == "" {
		return nil, fmt.Errorf("narrative response missing required fields")
	}
	if result.Anomalies == nil {
		result.Anomalies = []Anomaly{}
	}

	c.logger.Debug().
		Int("anomalies", len(result.Anomalies)).
		Msg("narrative summaries generated")

	return &result, nil
}

// stripFences removes a markdown code fence that chat models often wrap
// around JSON payloads.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = content[7:]
	}
	if strings.HasPrefix(content, "```") {
		content = content[3:]
	}
	if strings.HasSuffix(content, "```") {
		content = content[:len(content)-3]
	}
	return strings.TrimSpace(content)
}
