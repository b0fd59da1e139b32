package cli

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Show prints a single dream in full, including the analysis and the
// exploration conversation when present.
func (a *App) Show(ctx context.Context) error {
	rec, err := a.promptRecord("Enter dream id to show")
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	fmt.Printf("Dream %d (%s)\n", rec.Id, time.UnixMilli(rec.Id).Format("2006-01-02 15:04"))
	if rec.Title != "" {
		fmt.Println("Title:", rec.Title)
	}
	fmt.Println(rec.Content)

	if rec.IsAnalyzed() {
		fmt.Println("\nInterpretation:")
		fmt.Println(rec.Interpretation)
		if len(rec.Tags) > 0 {
			fmt.Println("Tags:", strings.Join(rec.Tags, ", "))
		}
	}

	if len(rec.Messages) > 0 {
		fmt.Println("\nExploration:")
		for _, m := range rec.Messages {
			fmt.Printf("  %s: %s\n", m.Role, m.Content)
		}
	}
	return nil
}

// Delete removes a dream by its identifier, prompting the user for the ID.
func (a *App) Delete(ctx context.Context) error {
	rec, err := a.promptRecord("Enter dream id to delete")
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if err := a.records.Delete(ctx, rec.Id); err != nil {
		log.Printf("warning: %v", err)
		return err
	}
	fmt.Printf("Deleted dream %d\n", rec.Id)
	return nil
}
