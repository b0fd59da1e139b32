package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/quota"
)

// Analyze runs the analysis collaborator on one dream. The quota gate is
// consulted before anything happens and the usage is recorded only after the
// analysis actually completed.
func (a *App) Analyze(ctx context.Context) error {
	rec, err := a.promptRecord("Enter dream id to analyze")
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if err := a.gate.Ensure(ctx, quota.DimensionAnalysis, rec); err != nil {
		printQuotaError(err)
		return err
	}

	if err := a.records.BeginAnalysis(ctx, rec.Id); err != nil {
		log.Printf("error: %v", err)
		return err
	}

	analysis, err := a.analyzer.Analyze(ctx, rec.Content)
	if err != nil {
		log.Printf("analysis failed: %v", err)
		if ferr := a.records.FailAnalysis(ctx, rec.Id); ferr != nil {
			log.Printf("error: %v", ferr)
		}
		return err
	}

	if err := a.records.CompleteAnalysis(ctx, rec.Id, analysis); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if err := a.gate.Consume(ctx, quota.DimensionAnalysis); err != nil {
		log.Printf("error recording usage: %v", err)
	}

	fmt.Println("Title:", analysis.Title)
	fmt.Println(analysis.Interpretation)
	return nil
}

func printQuotaError(err error) {
	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		switch exceeded.Reason {
		case quota.ReasonGuestLimitReached:
			fmt.Println("Guest limit reached. Log in to get a bigger quota.")
		case quota.ReasonFreeLimitReached:
			fmt.Println("Monthly limit reached. Upgrade to premium for unlimited use.")
		case quota.ReasonMessageLimit:
			fmt.Println("This exploration has reached its message limit.")
		case quota.ReasonTierResolving:
			fmt.Println("Your subscription is still being verified, try again in a moment.")
		default:
			fmt.Println("Quota exceeded:", exceeded.Reason)
		}
		return
	}
	log.Printf("error: %v", err)
}
