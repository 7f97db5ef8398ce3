package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pecha-studio/internal/domain"
)

// TestClientTranslateSendsThinkingBudget verifies the native reasoning
// budget reaches the wire under generationConfig.thinkingConfig.
func TestClientTranslateSendsThinkingBudget(t *testing.T) {
	var captured map[string]any
	server := newGenerateServer(t, &captured, "The translation.")
	defer server.Close()

	client := NewForTests("key", "gemini-2.5-pro", server.URL, server.Client())

	budget := int32(16448)
	text, err := client.Translate(context.Background(), "བོད་ཡིག", "English", &budget)
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if text != "The translation." {
		t.Fatalf("text = %q, want %q", text, "The translation.")
	}

	cfg, ok := captured["generationConfig"].(map[string]any)
	if !ok {
		t.Fatalf("request has no generationConfig: %v", captured)
	}
	thinking, ok := cfg["thinkingConfig"].(map[string]any)
	if !ok {
		t.Fatalf("generationConfig has no thinkingConfig: %v", cfg)
	}
	if got := thinking["thinkingBudget"]; got != float64(16448) {
		t.Fatalf("thinkingBudget = %v, want 16448", got)
	}
}

// TestClientTranslateOmitsBudgetWhenUnset verifies no thinkingConfig is
// sent when the caller passes nil.
func TestClientTranslateOmitsBudgetWhenUnset(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		writeGenerateResponse(w, "ok")
	}))
	defer server.Close()

	client := NewForTests("key", "gemini-2.5-pro", server.URL, server.Client())

	if _, err := client.Translate(context.Background(), "བོད་ཡིག", "English", nil); err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if strings.Contains(string(body), "thinkingConfig") {
		t.Fatalf("request unexpectedly carries thinkingConfig: %s", body)
	}
}

// TestClientTranslateTargetsLanguage verifies the configured language
// reaches the system instruction.
func TestClientTranslateTargetsLanguage(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		writeGenerateResponse(w, "ok")
	}))
	defer server.Close()

	client := NewForTests("key", "gemini-2.5-pro", server.URL, server.Client())

	if _, err := client.Translate(context.Background(), "བོད་ཡིག", "French", nil); err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if !strings.Contains(string(body), "French") {
		t.Fatal("request does not mention the target language")
	}
}

// TestClientTranscribeSendsInlineImage verifies the page image is inlined
// as base64 with its MIME type and the model lands in the URL path.
func TestClientTranscribeSendsInlineImage(t *testing.T) {
	var captured map[string]any
	var path, key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeGenerateResponse(w, "ཨོཾ་མ་ཎི་པདྨེ་ཧཱུྃ།")
	}))
	defer server.Close()

	client := NewForTests("secret", "gemini-2.5-flash", server.URL, server.Client())

	image := []byte{0x89, 0x50, 0x4e, 0x47}
	text, err := client.Transcribe(context.Background(), image, "image/png")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "ཨོཾ་མ་ཎི་པདྨེ་ཧཱུྃ།" {
		t.Fatalf("text = %q, want the transcription", text)
	}
	if path != "/models/gemini-2.5-flash:generateContent" {
		t.Fatalf("path = %q, want model generateContent path", path)
	}
	if key != "secret" {
		t.Fatalf("key query = %q, want %q", key, "secret")
	}

	data := inlinePartData(t, captured)
	if data["mimeType"] != "image/png" {
		t.Fatalf("mimeType = %v, want image/png", data["mimeType"])
	}
	decoded, err := base64.StdEncoding.DecodeString(data["data"].(string))
	if err != nil {
		t.Fatalf("decode inline data: %v", err)
	}
	if string(decoded) != string(image) {
		t.Fatalf("inline data does not round-trip the image bytes")
	}
}

// TestClientFormatInterleavesPages verifies every page contributes its
// number, image, and raw transcription to the merge request.
func TestClientFormatInterleavesPages(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		writeGenerateResponse(w, "merged")
	}))
	defer server.Close()

	client := NewForTests("key", "gemini-2.5-pro", server.URL, server.Client())

	pages := []domain.PageImage{
		{ID: "a", Transcript: "first page text", Bytes: []byte{1}, MIME: "image/jpeg"},
		{ID: "b", Transcript: "second page text", Bytes: []byte{2}, MIME: "image/jpeg"},
	}
	if _, err := client.Format(context.Background(), pages); err != nil {
		t.Fatalf("Format returned error: %v", err)
	}

	for _, want := range []string{"Page 1:", "Page 2:", "first page text", "second page text"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("request body missing %q", want)
		}
	}
	if got := strings.Count(string(body), "inlineData"); got != 2 {
		t.Fatalf("inlineData parts = %d, want 2", got)
	}
}

// TestClientStripsCodeFences verifies fenced replies are unwrapped before
// they reach the pipeline.
func TestClientStripsCodeFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeGenerateResponse(w, "```\nplain reply\n```")
	}))
	defer server.Close()

	client := NewForTests("key", "gemini-2.5-pro", server.URL, server.Client())

	text, err := client.Translate(context.Background(), "text", "", nil)
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if text != "plain reply" {
		t.Fatalf("text = %q, want %q", text, "plain reply")
	}
}

// TestClientSurfacesAPIErrors verifies non-200 replies become errors
// carrying the status code and the API message.
func TestClientSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer server.Close()

	client := NewForTests("bad", "gemini-2.5-pro", server.URL, server.Client())

	_, err := client.Translate(context.Background(), "text", "", nil)
	if err == nil {
		t.Fatal("Translate returned nil error for a 400 reply")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("error = %q, want status and API message", err)
	}
}

// TestClientRejectsEmptyAPIKey verifies no request is attempted without a
// key.
func TestClientRejectsEmptyAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server despite the empty key")
	}))
	defer server.Close()

	client := NewForTests("", "gemini-2.5-pro", server.URL, server.Client())

	if _, err := client.Translate(context.Background(), "text", "", nil); err == nil {
		t.Fatal("Translate returned nil error with an empty key")
	}
}

// newGenerateServer returns a server that captures the decoded request and
// answers with a single text candidate.
func newGenerateServer(t *testing.T, captured *map[string]any, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeGenerateResponse(w, reply)
	}))
}

func writeGenerateResponse(w http.ResponseWriter, text string) {
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			},
			"finishReason": "STOP",
		}},
	}
	json.NewEncoder(w).Encode(resp)
}

// inlinePartData digs the first inlineData part out of a captured request.
func inlinePartData(t *testing.T, captured map[string]any) map[string]any {
	t.Helper()
	contents, ok := captured["contents"].([]any)
	if !ok || len(contents) == 0 {
		t.Fatalf("request has no contents: %v", captured)
	}
	parts, ok := contents[0].(map[string]any)["parts"].([]any)
	if !ok {
		t.Fatalf("content has no parts: %v", contents[0])
	}
	for _, p := range parts {
		if data, ok := p.(map[string]any)["inlineData"].(map[string]any); ok {
			return data
		}
	}
	t.Fatalf("no inlineData part in request: %v", parts)
	return nil
}
