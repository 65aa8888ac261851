// Package genaicheck is a smoke test for the Gemini API: it asks for a
// numbered list of study suggestions and checks the reply is usable.
package genaicheck

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/quipper/poc/classroom/be/pkg/common/logger"
)

const (
	DefaultModel = "gemini-flash-latest"

	MinSuggestions = 8
	MaxSuggestions = 10
)

// Prompt asks for MinSuggestions..MaxSuggestions numbered suggestions for a
// student who scored scorePercent on a logic test.
func Prompt(scorePercent int) string {
	return fmt.Sprintf(`Bạn là nhà tâm lý giáo dục. Dựa trên kết quả kiểm tra logic %d%%, đề xuất %d-%d phương pháp cải thiện chi tiết (mỗi gợi ý 3-4 câu).

Định dạng: Mỗi gợi ý phải là danh sách có số thứ tự, mỗi gợi ý trên 1 dòng riêng:
Ví dụ:
1. [Nội dung gợi ý 1 - 3-4 câu chi tiết]
2. [Nội dung gợi ý 2 - 3-4 câu chi tiết]
3. [Nội dung gợi ý 3 - 3-4 câu chi tiết]
...
BẮT BUỘC phải có %d-%d gợi ý. Mỗi gợi ý phải bắt đầu bằng số thứ tự (1. 2. 3. ...) và nằm trên dòng riêng.`,
		scorePercent, MinSuggestions, MaxSuggestions, MinSuggestions, MaxSuggestions)
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a client for apiKey. An empty model selects DefaultModel.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.8),
		TopP:            genai.Ptr[float32](0.9),
		TopK:            genai.Ptr[float32](40),
		MaxOutputTokens: 5000,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", errors.New("no response text")
	}
	return text, nil
}

// numbered matches "1. ", "2) " and "3、" list markers.
var numbered = regexp.MustCompile(`^\d+[.)、]\s`)

// Result is the parsed shape of a reply.
type Result struct {
	TotalLines int
	Numbered   []string
}

// OK reports whether the reply has an acceptable number of suggestions.
func (r Result) OK() bool {
	return len(r.Numbered) >= MinSuggestions && len(r.Numbered) <= MaxSuggestions
}

// Parse counts non-blank lines and collects the numbered ones.
func Parse(text string) Result {
	var r Result
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.TotalLines++
		if numbered.MatchString(line) {
			r.Numbered = append(r.Numbered, line)
		}
	}
	return r
}

// Run sends the prompt and parses the reply. A reply outside the accepted
// range is returned together with an error.
func Run(ctx context.Context, g Generator, scorePercent int) (string, Result, error) {
	text, err := g.Generate(ctx, Prompt(scorePercent))
	if err != nil {
		return "", Result{}, err
	}
	r := Parse(text)
	logger.Debug("genaicheck: length=%d lines=%d numbered=%d", len(text), r.TotalLines, len(r.Numbered))
	if !r.OK() {
		return text, r, fmt.Errorf("expected %d-%d numbered suggestions, got %d", MinSuggestions, MaxSuggestions, len(r.Numbered))
	}
	return text, r, nil
}
