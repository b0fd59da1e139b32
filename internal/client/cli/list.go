package cli

import (
	"context"
	"fmt"
	"log"
	"time"
)

// List prints a one-line summary per dream.
func (a *App) List(ctx context.Context) error {
	recs := a.records.Records()
	if len(recs) == 0 {
		fmt.Println("No dreams recorded yet")
		return nil
	}
	for _, r := range recs {
		title := r.Title
		if title == "" {
			title = firstWords(r.Content, 6)
		}
		marks := ""
		if r.Favorite {
			marks += " *"
		}
		if r.IsAnalyzed() {
			marks += " [analyzed]"
		}
		if r.IsExplored() {
			marks += " [explored]"
		}
		if r.PendingSync {
			marks += " [pending]"
		}
		when := time.UnixMilli(r.Id).Format("2006-01-02 15:04")
		fmt.Printf("%d  %s  %s%s\n", r.Id, when, title, marks)
	}
	return nil
}

// Sync forces a reload: remote list, queue flush, mutation replay.
func (a *App) Sync(ctx context.Context) error {
	res, err := a.records.Load(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	a.offline = res.Offline

	if res.Offline {
		log.Println("Server unreachable, showing cached data")
	} else {
		log.Printf("Synced, %d dreams", len(res.Records))
	}
	for _, m := range res.Rejected {
		log.Printf("Server refused a pending %s change (id %s); it stays local only", m.Kind, m.Id)
	}
	return nil
}

// Status renders the current quota picture.
func (a *App) Status(ctx context.Context) error {
	st, err := a.gate.Provider().Status(ctx, nil)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	fmt.Printf("Tier: %s\n", st.Tier)
	fmt.Printf("Analyses:     %s\n", renderUsage(st.Analyses.Used, st.Analyses.Limit))
	fmt.Printf("Explorations: %s\n", renderUsage(st.Explorations.Used, st.Explorations.Limit))
	if !st.CanAnalyze {
		fmt.Println("Analysis unavailable:", reasonText(st.Reasons))
	}
	if !st.CanExplore {
		fmt.Println("Exploration unavailable:", reasonText(st.Reasons))
	}
	return nil
}

func renderUsage(used int, limit *int) string {
	if limit == nil {
		return fmt.Sprintf("%d (unlimited)", used)
	}
	return fmt.Sprintf("%d of %d", used, *limit)
}

func reasonText(reasons []string) string {
	if len(reasons) == 0 {
		return "limit reached"
	}
	return reasons[0]
}

func firstWords(s string, n int) string {
	words := 0
	for i, r := range s {
		if r == ' ' || r == '\n' {
			words++
			if words == n {
				return s[:i] + "..."
			}
		}
	}
	return s
}
