package genaicheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	text   string
	err    error
	prompt string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.text, s.err
}

func suggestions(n int) string {
	var b strings.Builder
	b.WriteString("Dưới đây là các gợi ý:\n\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d. Gợi ý số %d.\n\n", i, i)
	}
	return b.String()
}

func TestParse(t *testing.T) {
	r := Parse("Intro\n\n1. one\n  2) two\n3、 three\n4.no space\n10. ten\n")
	assert.Equal(t, 6, r.TotalLines)
	assert.Equal(t, []string{"1. one", "2) two", "3、 three", "10. ten"}, r.Numbered)
}

func TestResultOK(t *testing.T) {
	for n, want := range map[int]bool{7: false, 8: true, 10: true, 11: false} {
		assert.Equal(t, want, Parse(suggestions(n)).OK(), "n=%d", n)
	}
}

func TestRun(t *testing.T) {
	g := &stubGenerator{text: suggestions(9)}
	text, r, err := Run(context.Background(), g, 70)
	require.NoError(t, err)
	assert.Len(t, r.Numbered, 9)
	assert.Equal(t, g.text, text)
	assert.Contains(t, g.prompt, "70%")
	assert.Contains(t, g.prompt, "8-10")

	g = &stubGenerator{text: suggestions(3)}
	_, r, err = Run(context.Background(), g, 70)
	assert.Error(t, err)
	assert.Len(t, r.Numbered, 3)

	g = &stubGenerator{err: errors.New("quota exceeded")}
	_, _, err = Run(context.Background(), g, 70)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestNewGeminiGenerator_RequiresKey(t *testing.T) {
	_, err := NewGeminiGenerator(context.Background(), "", "")
	assert.Error(t, err)
}
