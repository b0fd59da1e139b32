package cli

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/dmitrijs2005/dreamkeeper/internal/common"
)

// Login installs a session token pasted by the user, switches the quota
// provider to the authenticated variant and reloads the journal (which
// migrates guest records and flushes any pending mutations).
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		log.Println("Already logged in; logout first")
		return nil
	}

	token, err := GetToken(os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if err := a.sess.Set(token); err != nil {
		switch {
		case errors.Is(err, common.ErrTokenExpired):
			log.Println("Token is expired, please obtain a new one")
		case errors.Is(err, common.ErrInvalidToken):
			log.Println("Token is not valid")
		default:
			log.Printf("Login unsuccessful: %s", err.Error())
		}
		return err
	}

	a.selectGate()

	res, err := a.records.Load(ctx)
	if err != nil {
		log.Printf("error loading records: %v", err)
		return err
	}
	a.offline = res.Offline

	log.Printf("Logged in as %s (%d dreams)", a.sess.AccountID(), len(res.Records))
	if res.Offline {
		log.Println("Server unreachable, showing cached data; changes will be queued")
	}
	for _, m := range res.Rejected {
		log.Printf("Server refused a pending %s change (id %s); it stays local only", m.Kind, m.Id)
	}
	return nil
}

// Logout clears the session and returns to the guest-mode local journal.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		log.Println("Not logged in")
		return nil
	}

	a.sess.Clear()
	a.offline = false
	a.selectGate()

	if _, err := a.records.Load(ctx); err != nil {
		log.Printf("error loading records: %v", err)
		return err
	}
	log.Println("Logged out")
	return nil
}
