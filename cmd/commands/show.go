// Package commands implements CLI subcommands for msync.
package commands

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"sync"

	"github.com/greeddj/msync/internal/config"
	"github.com/greeddj/msync/internal/stdout"
	syncpkg "github.com/greeddj/msync/internal/sync"
	"github.com/greeddj/msync/internal/store/imap"
	"github.com/greeddj/msync/internal/store/maildir"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"
)

// folderInfo is one folder's name paired with its live message count.
type folderInfo struct {
	name     string
	messages int
}

// Show lists the folders msync currently sees on the local maildir and
// the remote IMAP account for one configured account, side by side.
func Show(cCtx *cli.Context) error {
	account := cCtx.Args().First()
	if account == "" {
		return fmt.Errorf("usage: msync show <account>")
	}
	verbose := cCtx.Bool("verbose")

	spin := stdout.New(false, verbose)
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

	ctx := cCtx.Context

	var localInfo, remoteInfo []folderInfo
	var localErr, remoteErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		spin.Update(fmt.Sprintf("[%s] Listing local folders...", a.Name))
		localInfo, localErr = listFolderInfo(ctx, local)
	}()
	go func() {
		defer wg.Done()
		spin.Update(fmt.Sprintf("[%s] Listing remote folders...", a.Name))
		remoteInfo, remoteErr = listFolderInfo(ctx, remote)
	}()
	wg.Wait()

	if localErr != nil {
		spin.Error(fmt.Sprintf("list local folders: %v", localErr))
		return fmt.Errorf("list local folders: %w", localErr)
	}
	if remoteErr != nil {
		spin.Error(fmt.Sprintf("list remote folders: %v", remoteErr))
		return fmt.Errorf("list remote folders: %w", remoteErr)
	}

	spin.Success("Folder metadata collected.")

	printFolderInfo(fmt.Sprintf("Local (%s)", a.MaildirRoot), localInfo, spin)
	fmt.Println()
	printFolderInfo(fmt.Sprintf("Remote (%s)", a.Remote.Server), remoteInfo, spin)

	return nil
}

func listFolderInfo(ctx context.Context, store syncpkg.Store) ([]folderInfo, error) {
	folders, err := store.ListFolders(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]folderInfo, 0, len(folders))
	for _, f := range folders {
		envs, err := store.ListEnvelopes(ctx, f, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("list envelopes for %s: %w", f, err)
		}
		infos = append(infos, folderInfo{name: f, messages: len(envs)})
	}
	return infos, nil
}

func printFolderInfo(title string, folders []folderInfo, spin *stdout.Spinner) {
	headerTable := table.NewWriter()
	headerTable.SetOutputMirror(os.Stdout)
	headerTable.Style().Options.DrawBorder = false
	headerTable.Style().Options.SeparateColumns = false
	headerTable.SetTitle(title)
	headerTable.Render()
	fmt.Println()

	if len(folders) == 0 {
		spin.Error("No folders found")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false

	t.AppendHeader(table.Row{"Folder", "Messages"})

	var totalMessages int
	for _, f := range folders {
		totalMessages += f.messages
		t.AppendRow(table.Row{f.name, f.messages})
	}

	t.AppendFooter(table.Row{
		text.Bold.Sprint(fmt.Sprintf("total folders %d", len(folders))),
		text.Bold.Sprintf("%d", totalMessages),
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})

	t.Render()
}

func hostOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
