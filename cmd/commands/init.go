// Package commands implements CLI subcommands for msync.
package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/greeddj/msync/internal/cache"
	"github.com/greeddj/msync/internal/config"
	"github.com/greeddj/msync/internal/stdout"

	"github.com/urfave/cli/v2"
)

// Init prepares an account's sync directory: the directory itself,
// its local-cache and remote-cache databases, and the maildir root if
// it does not yet exist. It does not touch the remote side — a bad
// IMAP password is caught by sync, not init.
func Init(cCtx *cli.Context) error {
	account := cCtx.Args().First()
	if account == "" {
		return fmt.Errorf("usage: msync init <account>")
	}

	spin := stdout.New(false, false)
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

	ctx, cancel := context.WithTimeout(cCtx.Context, 30*time.Second)
	defer cancel()

	spin.Update(fmt.Sprintf("Preparing sync directory %s...", a.SyncDir))
	if err := os.MkdirAll(a.SyncDir, 0o700); err != nil {
		spin.Error(fmt.Sprintf("create sync dir: %v", err))
		return fmt.Errorf("create sync dir %s: %w", a.SyncDir, err)
	}

	spin.Update(fmt.Sprintf("Preparing maildir root %s...", a.MaildirRoot))
	if err := os.MkdirAll(a.MaildirRoot, 0o700); err != nil {
		spin.Error(fmt.Sprintf("create maildir root: %v", err))
		return fmt.Errorf("create maildir root %s: %w", a.MaildirRoot, err)
	}

	spin.Update("Opening local cache database...")
	localCache, err := cache.Open(ctx, filepath.Join(a.SyncDir, "local-cache.db"))
	if err != nil {
		spin.Error(fmt.Sprintf("open local cache: %v", err))
		return fmt.Errorf("open local cache: %w", err)
	}
	defer func() { _ = localCache.Close() }()

	spin.Update("Opening remote cache database...")
	remoteCache, err := cache.Open(ctx, filepath.Join(a.SyncDir, "remote-cache.db"))
	if err != nil {
		spin.Error(fmt.Sprintf("open remote cache: %v", err))
		return fmt.Errorf("open remote cache: %w", err)
	}
	defer func() { _ = remoteCache.Close() }()

	spin.Success(fmt.Sprintf("Account %q ready: sync_dir=%s maildir=%s", a.Name, a.SyncDir, a.MaildirRoot))
	return nil
}
