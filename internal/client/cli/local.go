package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/services"
)

// localAnalyzer and localExplorer are the built-in stand-ins for the
// analysis and exploration collaborators. They keep the CLI usable without
// a configured model backend; a deployment wires real implementations into
// the same interfaces.

type localAnalyzer struct{}

func (localAnalyzer) Analyze(ctx context.Context, content string) (*services.Analysis, error) {
	title := firstWords(strings.TrimSpace(content), 6)
	themes := keywords(content, 3)

	interpretation := "Recurring elements in this dream: " + strings.Join(themes, ", ") + "."
	if len(themes) == 0 {
		interpretation = "No recurring elements stand out in this dream."
	}

	return &services.Analysis{
		Title:          title,
		Interpretation: interpretation,
		Tags:           themes,
	}, nil
}

type localExplorer struct{}

func (localExplorer) Reply(ctx context.Context, rec *models.Record) (string, error) {
	if rec.UserMessageCount() == 0 {
		topic := firstWords(strings.TrimSpace(rec.Content), 4)
		return fmt.Sprintf("You dreamt about %q. What feeling stayed with you after waking up?", topic), nil
	}
	last := rec.Messages[len(rec.Messages)-1]
	return fmt.Sprintf("You said %q. What does that remind you of?", firstWords(last.Content, 8)), nil
}

// keywords picks the most frequent longer words of the transcript.
func keywords(content string, n int) []string {
	freq := map[string]int{}
	for _, w := range strings.Fields(strings.ToLower(content)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) >= 5 {
			freq[w]++
		}
	}
	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
