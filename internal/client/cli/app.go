package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/dreamkeeper/internal/client/config"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/quota"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/services"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/session"
	"github.com/dmitrijs2005/dreamkeeper/internal/client/store"
	"github.com/dmitrijs2005/dreamkeeper/internal/filex"
	"github.com/dmitrijs2005/dreamkeeper/internal/logging"

	_ "modernc.org/sqlite"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   *store.Repositories
	sess    *session.Session
	gw      gateway.Gateway
	records *services.RecordService

	counters *quota.Counters
	gate     *quota.Gate

	analyzer services.Analyzer
	explorer services.Explorer

	offline bool
	reader  *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	dir, err := filex.EnsureSubdDir("data")
	if err != nil {
		return nil, err
	}

	repos, err := store.InitDatabase(ctx, filepath.Join(dir, c.DatabaseFile), logger)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	sess := session.New()
	gw := gateway.NewHTTPGateway(c.ServerBaseURL, sess, c.RequestTimeout)
	rs := services.NewRecordService(repos.Store, repos.Metadata, gw, sess, logger)

	counters := quota.NewCounters(repos.Metadata)
	if err := counters.EnsureSeeded(ctx, repos.Store.Load(ctx)); err != nil {
		logger.Warn(ctx, "failed to seed usage counters", "error", err)
	}

	a := &App{
		config:   c,
		logger:   logger,
		repos:    repos,
		sess:     sess,
		gw:       gw,
		records:  rs,
		counters: counters,
		analyzer: &localAnalyzer{},
		explorer: &localExplorer{},
		reader:   bufio.NewReader(os.Stdin),
	}
	a.selectGate()
	return a, nil
}

// selectGate picks the quota provider for the current session. Done once per
// login/logout transition rather than re-branched inside every check.
func (a *App) selectGate() {
	if a.sess.Authenticated() {
		billing := session.NewTokenBilling(a.sess)
		p := quota.NewAuthenticatedProvider(a.gw, billing, a.records, a.logger)
		a.gate = quota.NewGate(p, nil)
		return
	}
	guest := quota.NewGuestProvider(a.counters)
	fp := quota.NewFingerprint(a.repos.Metadata)
	a.gate = quota.NewGate(quota.NewRemoteGuestProvider(guest, a.gw, fp, a.logger), a.counters)
}

func (a *App) isLoggedIn() bool {
	return a.sess.Authenticated()
}

func (a *App) getStatus() string {
	s := "guest"
	if a.sess.Authenticated() {
		s = a.sess.AccountID()
		if a.offline {
			s += " offline"
		}
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		if err := a.repos.DB.Close(); err != nil {
			log.Printf("error closing database: %v", err)
		}
	}()

	log.Println("Welcome to DreamKeeper CLI (type 'help' for commands)")

	if _, err := a.records.Load(ctx); err != nil {
		log.Printf("error loading records: %v", err)
	}

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}
