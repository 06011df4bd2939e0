package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

const minimalJSON = `{"telegram":{"token":"T"},"storage":{"driver":"memory"}}`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{name: "json", file: "c.json", body: minimalJSON},
		{name: "yaml", file: "c.yaml", body: "telegram:\n  token: T\nstorage:\n  driver: memory\n"},
		{name: "unknown field", file: "c.json", body: `{"telegram":{"token":"T","tokn":"x"}}`, wantErr: "unknown field"},
		{name: "unknown yaml field", file: "c.yml", body: "plugins: {}\n", wantErr: "unknown field"},
		{name: "trailing data", file: "c.json", body: minimalJSON + ` {}`, wantErr: "trailing data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := decode(tt.file, []byte(tt.body))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if cfg.Telegram.Token != "T" || cfg.Storage.Driver != "memory" {
				t.Fatalf("cfg = %+v", cfg)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvTelegramToken, "from-env")
	t.Setenv(EnvStorageDSN, "postgres://x")
	cfg, err := decode("c.json", []byte(minimalJSON))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "from-env" || cfg.Storage.DSN != "postgres://x" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, ".env", "POSTBOT_TEST_DOTENV=hello\n")
	t.Setenv("POSTBOT_TEST_DOTENV", "")
	os.Unsetenv("POSTBOT_TEST_DOTENV")

	if err := LoadDotEnv(p); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("POSTBOT_TEST_DOTENV"); got != "hello" {
		t.Fatalf("env = %q", got)
	}
	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	ok := func() *Config {
		return &Config{Telegram: TelegramConfig{Token: "T"}, Storage: StorageConfig{Driver: "sqlite"}}
	}
	if err := Validate(ok()); err != nil {
		t.Fatalf("Validate(ok) = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"no token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"bad group log", func(c *Config) { c.Telegram.GroupLog = "ops" }, "telegram.group_log"},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Base" }, "scheduler.timezone"},
		{"bad timeout", func(c *Config) { c.Broadcast.SendTimeout = "soon" }, "broadcast.send_timeout"},
		{"negative duration", func(c *Config) { c.TaskEngine.DefaultTimeout = "-1s" }, "task_engine.default_timeout"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"mysql without dsn", func(c *Config) { c.Storage.Driver = "mysql" }, "storage.dsn"},
		{"bad session driver", func(c *Config) { c.Session.Driver = "etcd" }, "session.driver"},
		{"nsq without topic", func(c *Config) { c.Events.NSQ.Enabled = true }, "events.nsq.topic"},
		{"duplicate variant", func(c *Config) {
			c.Post.Variants = []VariantConfig{{Name: "a", TutorialLink: "x"}, {Name: "A", TutorialLink: "y"}}
		}, "duplicate"},
		{"bad ops addr", func(c *Config) { c.Ops = OpsConfig{Enabled: true, Addr: "8081"} }, "ops.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ok()
			tt.mutate(c)
			err := Validate(c)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Telegram: TelegramConfig{Token: "old-secret"}, Ops: OpsConfig{Token: "a"}}
	newCfg := &Config{
		Telegram:  TelegramConfig{Token: "new-secret", OwnerUserIDs: []int64{1}},
		Broadcast: BroadcastConfig{RatePerSec: 2},
		Ops:       OpsConfig{Token: "b"},
		Storage:   StorageConfig{DSN: "user:pass@tcp(db)/x"},
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if want := []string{"broadcast", "ops", "storage", "telegram"}; !slices.Equal(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	dump := fmt.Sprint(attrs)
	for _, secret := range []string{"new-secret", "old-secret", "user:pass"} {
		if strings.Contains(dump, secret) {
			t.Fatalf("summary leaks %q: %s", secret, dump)
		}
	}

	restart := RequiresRestart(oldCfg, newCfg, changed)
	if want := []string{"ops", "storage", "telegram"}; !slices.Equal(restart, want) {
		t.Fatalf("RequiresRestart = %v, want %v", restart, want)
	}
	owners := &Config{Telegram: TelegramConfig{Token: "new-secret"}}
	if got := RequiresRestart(owners, newCfg, []string{"telegram"}); len(got) != 0 {
		t.Fatalf("owner change should be live, got %v", got)
	}

	tzOld := &Config{Scheduler: SchedulerConfig{Timezone: "UTC"}}
	tzNew := &Config{Scheduler: SchedulerConfig{Timezone: "Asia/Kolkata"}}
	if got := RequiresRestart(tzOld, tzNew, []string{"scheduler"}); !slices.Equal(got, []string{"scheduler"}) {
		t.Fatalf("timezone move = %v", got)
	}
	every := &Config{Scheduler: SchedulerConfig{Timezone: "UTC", ReconcileEvery: "5m"}}
	if got := RequiresRestart(tzOld, every, []string{"scheduler"}); len(got) != 0 {
		t.Fatalf("reconcile interval change should be live, got %v", got)
	}
}

func TestDurationOr(t *testing.T) {
	t.Parallel()
	if got := DurationOr("", 5*time.Second); got != 5*time.Second {
		t.Fatalf("empty = %v", got)
	}
	if got := DurationOr("2m", time.Second); got != 2*time.Minute {
		t.Fatalf("2m = %v", got)
	}
	if got := DurationOr("bogus", time.Second); got != time.Second {
		t.Fatalf("bogus = %v", got)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", minimalJSON)

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// Invalid content is rejected and not published.
	writeFile(t, dir, "config.json", `{"telegram":{"token":""}}`)
	select {
	case cfg := <-sub:
		t.Fatalf("invalid config published: %+v", cfg)
	case <-time.After(600 * time.Millisecond):
	}

	writeFile(t, dir, "config.json", `{"telegram":{"token":"T"},"storage":{"driver":"memory"},"broadcast":{"rate_per_sec":3}}`)
	select {
	case cfg := <-sub:
		if cfg.Broadcast.RatePerSec != 3 || m.Get().Broadcast.RatePerSec != 3 {
			t.Fatalf("published = %+v", cfg.Broadcast)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload published")
	}
}
