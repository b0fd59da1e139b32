package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/models"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/quota"
)

// Explore opens an exploration conversation on one dream, seeded with an
// opening question from the exploration collaborator.
func (a *App) Explore(ctx context.Context) error {
	rec, err := a.promptRecord("Enter dream id to explore")
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if rec.IsExplored() {
		fmt.Println("Exploration already started; use 'say' to continue")
		return nil
	}

	if err := a.gate.Ensure(ctx, quota.DimensionExploration, rec); err != nil {
		printQuotaError(err)
		return err
	}

	seed, err := a.explorer.Reply(ctx, rec)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if err := a.records.StartExploration(ctx, rec.Id, seed); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if err := a.gate.Consume(ctx, quota.DimensionExploration); err != nil {
		log.Printf("error recording usage: %v", err)
	}

	fmt.Println(seed)
	return nil
}

// Say adds one user message to an exploration and prints the reply. The
// per-dream message quota counts user messages only.
func (a *App) Say(ctx context.Context) error {
	rec, err := a.promptRecord("Enter dream id")
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if !rec.IsExplored() {
		fmt.Println("No exploration yet; use 'explore' first")
		return nil
	}

	if err := a.gate.Ensure(ctx, quota.DimensionMessage, rec); err != nil {
		printQuotaError(err)
		return err
	}

	text, err := GetMultiline(a.reader, "Your message:", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if text == "" {
		log.Println("Nothing entered")
		return nil
	}

	if err := a.records.AppendMessage(ctx, rec.Id, models.MessageRoleUser, text); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if err := a.gate.Consume(ctx, quota.DimensionMessage); err != nil {
		log.Printf("error recording usage: %v", err)
	}

	reply, err := a.explorer.Reply(ctx, a.records.Get(rec.Id))
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if err := a.records.AppendMessage(ctx, rec.Id, models.MessageRoleAssistant, reply); err != nil {
		log.Printf("error: %v", err)
		return err
	}

	fmt.Println(reply)
	return nil
}
