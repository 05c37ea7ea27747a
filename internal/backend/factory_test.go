package backend

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/sqlite"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "postgres",
		PostgresDSN:  "postgres://localhost/fintrack",
		AMQPURL:      "amqp://localhost/",
		AMQPExchange: "fintrack",
		AMQPQueue:    "ledger_events",
	})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.PostgresDSN == "" || cfg.AMQPQueue != "ledger_events" {
		t.Errorf("unexpected backend config: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"sqlite ok", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, ""},
		{"sqlite missing path", Config{Type: SQLiteBackend}, "SQLite database path"},
		{"postgres missing dsn", Config{Type: PostgresBackend}, "Postgres DSN"},
		{"memory ok", Config{Type: MemoryBackend}, ""},
		{"unknown", Config{Type: "sheets"}, "invalid backend type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
		if err != nil {
			t.Fatalf("CreateBackend: %v", err)
		}
		defer res.Cleanup()
		if _, ok := res.Store.(*memory.Store); !ok {
			t.Fatalf("store is %T", res.Store)
		}
		if res.Events != nil {
			t.Fatalf("no AMQP configured, Events should be nil")
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{
			Type:         SQLiteBackend,
			SQLiteDBPath: filepath.Join(t.TempDir(), "fintrack.db"),
		})
		if err != nil {
			t.Fatalf("CreateBackend: %v", err)
		}
		if _, ok := res.Store.(*sqlite.Repository); !ok {
			t.Fatalf("store is %T", res.Store)
		}
		if err := res.Store.Ping(ctx); err != nil {
			t.Fatalf("Ping: %v", err)
		}
		if err := res.Cleanup(); err != nil {
			t.Fatalf("Cleanup: %v", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := f.CreateBackend(ctx, Config{Type: PostgresBackend}); err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestCreateBackendLogsComponents(t *testing.T) {
	var buf bytes.Buffer
	f := NewFactory(log.New(log.Config{Output: &buf, Component: log.ComponentApp}))

	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "in-memory store") {
		t.Errorf("store log missing storage component: %s", out)
	}
	if !strings.Contains(out, "component=backend") || !strings.Contains(out, "Initialized backend") {
		t.Errorf("backend log missing backend component: %s", out)
	}
}
