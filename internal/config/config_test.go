package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	base := func() SyncAccount {
		return SyncAccount{
			Name:    "work",
			Enabled: true,
			Remote: Credentials{
				Server: "imap.example.com:993",
				User:   "user@example.com",
				Pass:   "password",
			},
			MaildirRoot: "/home/user/Maildir",
			SyncDir:     "/home/user/.msync/work",
		}
	}

	tests := []struct {
		name        string
		mutate      func(*SyncAccount)
		wantErr     bool
		errContains string
	}{
		{name: "valid account", mutate: func(a *SyncAccount) {}},
		{
			name:        "missing remote server",
			mutate:      func(a *SyncAccount) { a.Remote.Server = "" },
			wantErr:     true,
			errContains: "remote.server is required",
		},
		{
			name:        "missing remote user",
			mutate:      func(a *SyncAccount) { a.Remote.User = "" },
			wantErr:     true,
			errContains: "remote.user is required",
		},
		{
			name:        "missing maildir root",
			mutate:      func(a *SyncAccount) { a.MaildirRoot = "" },
			wantErr:     true,
			errContains: "maildir is required",
		},
		{
			name:        "missing sync dir",
			mutate:      func(a *SyncAccount) { a.SyncDir = "" },
			wantErr:     true,
			errContains: "sync_dir is required",
		},
		{
			name:    "disabled account skips validation",
			mutate:  func(a *SyncAccount) { a.Enabled = false; a.Remote.Server = "" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base()
			tt.mutate(&a)
			cfg := Config{Accounts: []SyncAccount{a}}

			err := cfg.validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("expected error containing %q, got %v", tt.errContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateDuplicateAccountName(t *testing.T) {
	a := SyncAccount{Name: "work", Enabled: false}
	cfg := Config{Accounts: []SyncAccount{a, a}}

	err := cfg.validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate account name") {
		t.Fatalf("expected duplicate-name error, got %v", err)
	}
}

func TestAccountLookup(t *testing.T) {
	cfg := Config{Accounts: []SyncAccount{{Name: "work"}, {Name: "home"}}}

	a, err := cfg.Account("home")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Name != "home" {
		t.Fatalf("expected home, got %s", a.Name)
	}

	if _, err := cfg.Account("missing"); err == nil {
		t.Fatalf("expected error for unknown account")
	}
}
