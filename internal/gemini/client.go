package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pecha-studio/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client calls the Gemini generateContent API for every model task in the
// app: page transcription, merge formatting, translation, explanation, and
// alternate renderings. One failed call is reported as-is; retrying is the
// caller's decision.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
}

// New builds a client for the given API key and model ID.
func New(apiKey, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 180 * time.Second},
	}
}

// NewForTests builds a client pointed at a test server.
func NewForTests(apiKey, model, baseURL string, httpc *http.Client) *Client {
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		httpc:   httpc,
	}
}

// generateRequest is the generateContent payload subset the app uses.
type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature    *float32        `json:"temperature,omitempty"`
	ThinkingConfig *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int32 `json:"thinkingBudget"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Transcribe converts one pecha page image into Tibetan Unicode text.
func (c *Client) Transcribe(ctx context.Context, image []byte, mime string) (string, error) {
	req := generateRequest{
		SystemInstruction: systemText(transcribeSystemPrompt),
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{
					MIMEType: mime,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
				{Text: "Transcribe this pecha page."},
			},
		}},
		GenerationConfig: &generationConfig{Temperature: ptrFloat32(0)},
	}

	return c.generate(ctx, req)
}

// Format merges the successfully transcribed pages into one canonical text.
// The model sees each page image next to its raw transcription so it can
// repair page-break artifacts against the source.
func (c *Client) Format(ctx context.Context, pages []domain.PageImage) (string, error) {
	parts := make([]part, 0, len(pages)*3+1)
	for i, page := range pages {
		parts = append(parts, part{Text: fmt.Sprintf("Page %d:", i+1)})
		if len(page.Bytes) > 0 {
			parts = append(parts, part{InlineData: &inlineData{
				MIMEType: page.MIME,
				Data:     base64.StdEncoding.EncodeToString(page.Bytes),
			}})
		}
		parts = append(parts, part{Text: "Raw transcription:\n" + page.Transcript})
	}
	parts = append(parts, part{Text: "Merge these pages into one continuous text."})

	req := generateRequest{
		SystemInstruction: systemText(formatSystemPrompt),
		Contents:          []content{{Role: "user", Parts: parts}},
		GenerationConfig:  &generationConfig{Temperature: ptrFloat32(0)},
	}

	return c.generate(ctx, req)
}

// Translate renders the canonical Tibetan text into the target language,
// English when blank. A non-nil thinkingBudget is passed through as the
// model's native reasoning budget.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string, thinkingBudget *int32) (string, error) {
	if strings.TrimSpace(targetLanguage) == "" {
		targetLanguage = "English"
	}

	cfg := &generationConfig{Temperature: ptrFloat32(0)}
	if thinkingBudget != nil {
		cfg.ThinkingConfig = &thinkingConfig{ThinkingBudget: *thinkingBudget}
	}

	req := generateRequest{
		SystemInstruction: systemText(fmt.Sprintf(translateSystemPrompt, targetLanguage)),
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: text}},
		}},
		GenerationConfig: cfg,
	}

	return c.generate(ctx, req)
}

// Explain explains the selected passage in the context of the whole text
// and its existing translation.
func (c *Client) Explain(ctx context.Context, passage, canonical, translation string) (string, error) {
	req := generateRequest{
		SystemInstruction: systemText(explainSystemPrompt),
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: selectionPayload(passage, canonical, translation)}},
		}},
		GenerationConfig: &generationConfig{Temperature: ptrFloat32(0)},
	}

	return c.generate(ctx, req)
}

// Alternates proposes alternative English renderings of the selected
// passage. Temperature is raised because the value of the answer is in its
// variety.
func (c *Client) Alternates(ctx context.Context, passage, canonical, translation string) (string, error) {
	req := generateRequest{
		SystemInstruction: systemText(alternatesSystemPrompt),
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: selectionPayload(passage, canonical, translation)}},
		}},
		GenerationConfig: &generationConfig{Temperature: ptrFloat32(0.8)},
	}

	return c.generate(ctx, req)
}

// generate posts one generateContent request and extracts the reply text.
func (c *Client) generate(ctx context.Context, payload generateRequest) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", fmt.Errorf("gemini api key is empty")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini %d: %s", resp.StatusCode, errorMessage(raw))
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	text := firstText(out)
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}

// selectionPayload lays out a selection question for the model.
func selectionPayload(passage, canonical, translation string) string {
	var b strings.Builder
	b.WriteString("Selected passage:\n")
	b.WriteString(passage)
	b.WriteString("\n\nFull Tibetan text:\n")
	b.WriteString(canonical)
	b.WriteString("\n\nExisting English translation:\n")
	b.WriteString(translation)
	return b.String()
}

// firstText returns the first candidate's text parts joined, cleaned of
// code fences.
func firstText(out generateResponse) string {
	for _, cand := range out.Candidates {
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if text := stripCodeFences(b.String()); text != "" {
			return text
		}
	}
	return ""
}

// errorMessage extracts the API error message, falling back to a body
// snippet for non-JSON failures.
func errorMessage(raw []byte) string {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}

	snippet := strings.TrimSpace(string(raw))
	if len(snippet) > 300 {
		snippet = snippet[:300] + "..."
	}
	return snippet
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func systemText(prompt string) *content {
	return &content{Parts: []part{{Text: prompt}}}
}

func ptrFloat32(v float32) *float32 {
	return &v
}
