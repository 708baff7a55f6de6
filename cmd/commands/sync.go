// Package commands implements CLI subcommands for msync.
package commands

import (
	"crypto/tls"
	"fmt"
	"path/filepath"

	"github.com/greeddj/msync/internal/cache"
	"github.com/greeddj/msync/internal/config"
	"github.com/greeddj/msync/internal/progress"
	"github.com/greeddj/msync/internal/stdout"
	syncpkg "github.com/greeddj/msync/internal/sync"
	"github.com/greeddj/msync/internal/store/imap"
	"github.com/greeddj/msync/internal/store/maildir"
	"github.com/greeddj/msync/internal/synclock"
	"github.com/greeddj/msync/internal/synclog"
	"github.com/greeddj/msync/internal/utils"

	"github.com/urfave/cli/v2"
)

// Sync reconciles folders and envelopes between the local maildir and
// the remote IMAP account for one configured account.
func Sync(cCtx *cli.Context) error {
	account := cCtx.Args().First()
	if account == "" {
		return fmt.Errorf("usage: msync sync <account>")
	}
	verbose := cCtx.Bool("verbose")
	quiet := cCtx.Bool("quiet")
	autoConfirm := cCtx.Bool("confirm")

	spin := stdout.New(quiet, verbose)
	defer spin.Stop()

	spin.Update("Loading configuration...")
	cfg, err := config.Load(cCtx.String("config"))
	if err != nil {
		spin.Error(fmt.Sprintf("load config: %v", err))
		return fmt.Errorf("load config: %w", err)
	}

	a, err := cfg.Account(account)
	if err != nil {
		spin.Error(err.Error())
		return err
	}
	if !a.Enabled {
		return fmt.Errorf("account %q is disabled", account)
	}
	config.ApplyCLI(a, cCtx)

	if !autoConfirm {
		msg := fmt.Sprintf("Sync account %q (%s <-> %s)?", a.Name, a.MaildirRoot, a.Remote.Server)
		if a.DryRun {
			msg = "[dry run] " + msg
		}
		confirmed, err := utils.AskConfirm(cCtx.Context, msg)
		if err != nil {
			return fmt.Errorf("confirm: %w", err)
		}
		if !confirmed {
			spin.Update("Aborted.")
			return nil
		}
	}

	lock := synclock.New(a.SyncDir, a.Name)
	spin.Update("Acquiring account lock...")
	if err := lock.TryAcquire(); err != nil {
		spin.Error(err.Error())
		return err
	}
	defer func() { _ = lock.Release() }()

	ctx := cCtx.Context

	spin.Update("Opening local cache database...")
	localCacheDB, err := cache.Open(ctx, filepath.Join(a.SyncDir, "local-cache.db"))
	if err != nil {
		spin.Error(fmt.Sprintf("open local cache: %v", err))
		return fmt.Errorf("open local cache: %w", err)
	}
	defer func() { _ = localCacheDB.Close() }()

	spin.Update("Opening remote cache database...")
	remoteCacheDB, err := cache.Open(ctx, filepath.Join(a.SyncDir, "remote-cache.db"))
	if err != nil {
		spin.Error(fmt.Sprintf("open remote cache: %v", err))
		return fmt.Errorf("open remote cache: %w", err)
	}
	defer func() { _ = remoteCacheDB.Close() }()

	local := maildir.New(a.Name+"-local", a.MaildirRoot)

	spin.Update(fmt.Sprintf("[%s] Connecting to remote...", a.Name))
	var tlsConf *tls.Config
	if a.Remote.TLS {
		tlsConf = &tls.Config{ServerName: hostOf(a.Remote.Server)}
	}
	remote, err := imap.New(a.Name+"-remote", imap.Config{
		Addr:     a.Remote.Server,
		UseTLS:   a.Remote.TLS,
		TLSConf:  tlsConf,
		Username: a.Remote.User,
		Password: a.Remote.Pass,
	})
	if err != nil {
		spin.Error(fmt.Sprintf("remote connection failed: %v", err))
		return fmt.Errorf("remote connection failed: %w", err)
	}

	stores := syncpkg.Stores{
		Local:       local,
		Remote:      remote,
		LocalCache:  localCacheDB.For(a.Name, cache.SideLocal),
		RemoteCache: remoteCacheDB.For(a.Name, cache.SideRemote),
	}

	runLog := synclog.NewRun(nil, a.Name)
	runProgress := progress.NewRunTracker(quiet)

	spin.Update("Reconciling...")
	spin.Stop()
	stats, err := syncpkg.Run(ctx, syncpkg.RunOptions{
		Account: a.Name,
		Stores:  stores,
		Exec: syncpkg.Options{
			Workers: a.Workers,
			DryRun:  a.DryRun,
			Logger:  runLog,
		},
		Progress: runProgress,
	})
	runProgress.Stop()
	spin.Restart()
	if err != nil {
		spin.Error(fmt.Sprintf("sync failed: %v", err))
		return fmt.Errorf("sync failed: %w", err)
	}

	total := syncpkg.Summary{}
	for _, f := range stats.Folders {
		total.Applied += f.Summary.Applied
		total.Skipped += f.Summary.Skipped
		total.Errored += f.Summary.Errored
	}
	runLog.Summary(a.Name, total)

	if total.HasErrors() {
		spin.Error(fmt.Sprintf("Sync completed with errors: %d applied, %d skipped, %d errored across %d folders",
			total.Applied, total.Skipped, total.Errored, len(stats.Folders)))
		return fmt.Errorf("sync completed with %d errored hunks", total.Errored)
	}

	spin.Success(fmt.Sprintf("Sync complete: %d applied, %d skipped across %d folders",
		total.Applied, total.Skipped, len(stats.Folders)))
	return nil
}
