package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
)

// Add records a new dream from a multi-line transcript.
func (a *App) Add(ctx context.Context) error {
	content, err := GetMultiline(a.reader, "Describe your dream:", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if content == "" {
		log.Println("Nothing entered")
		return nil
	}

	rec, err := a.records.Create(ctx, &models.Record{Content: content})
	if err != nil {
		// The record is kept locally even when the backend refused it.
		log.Printf("warning: %v", err)
	}
	if rec != nil {
		fmt.Printf("Saved dream %d\n", rec.Id)
	}
	return err
}

// promptRecord asks for a dream id and resolves it against the in-memory set.
func (a *App) promptRecord(prompt string) (*models.Record, error) {
	raw, err := GetSimpleText(a.reader, prompt, os.Stdout)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("not a dream id: %q", raw)
	}
	rec := a.records.Get(id)
	if rec == nil {
		return nil, fmt.Errorf("no dream with id %d", id)
	}
	return rec, nil
}
