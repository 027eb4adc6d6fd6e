package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Primary.Name != "jobscraps" {
		t.Errorf("primary database = %q, want jobscraps", cfg.Primary.Name)
	}
	if cfg.Working.Name != "jobscraps_working" {
		t.Errorf("working database = %q, want jobscraps_working", cfg.Working.Name)
	}
	if cfg.Backup.MaxCount != 48 || cfg.Backup.TargetCount != 44 {
		t.Errorf("retention counts = %d/%d, want 48/44", cfg.Backup.MaxCount, cfg.Backup.TargetCount)
	}
	if len(cfg.Dedupe.SitePreference) == 0 {
		t.Error("default site preference is empty")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobscraps.json")
	body := `{
		"primary_database": {"host": "db.lan", "port": 5433, "database": "jobs", "username": "scraper"},
		"backup": {"dir": "/var/backups/jobs", "max_count": 10, "target_count": 8}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Primary.Host != "db.lan" || cfg.Primary.Port != 5433 {
		t.Errorf("primary host:port = %s:%d, want db.lan:5433", cfg.Primary.Host, cfg.Primary.Port)
	}
	if cfg.Backup.Dir != "/var/backups/jobs" {
		t.Errorf("backup dir = %q, want /var/backups/jobs", cfg.Backup.Dir)
	}
	if cfg.Backup.MaxCount != 10 || cfg.Backup.TargetCount != 8 {
		t.Errorf("retention counts = %d/%d, want 10/8", cfg.Backup.MaxCount, cfg.Backup.TargetCount)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobscraps.json")
	if err := os.WriteFile(path, []byte(`{"primary_database": {"host": "db.lan"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JOBSCRAPS_PRIMARY_HOST", "override.lan")
	t.Setenv("JOBSCRAPS_PRIMARY_PORT", "6432")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Primary.Host != "override.lan" {
		t.Errorf("primary host = %q, want override.lan", cfg.Primary.Host)
	}
	if cfg.Primary.Port != 6432 {
		t.Errorf("primary port = %d, want 6432", cfg.Primary.Port)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobscraps.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config, got nil")
	}
}

func TestLoad_RejectsSamePrimaryAndWorking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobscraps.json")
	body := `{
		"primary_database": {"database": "jobs"},
		"working_database": {"database": "jobs"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when primary and working databases collide")
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, Name: "db", User: "u", Password: "p", ConnectTimeoutSeconds: 30}
	want := "postgres://u:p@h:5432/db?connect_timeout=30"
	if got := d.URL(); got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestConfig_Database(t *testing.T) {
	cfg := defaults()
	if got := cfg.Database(TargetWorking).Name; got != cfg.Working.Name {
		t.Errorf("Database(working) = %q, want %q", got, cfg.Working.Name)
	}
	if got := cfg.Database(TargetPrimary).Name; got != cfg.Primary.Name {
		t.Errorf("Database(primary) = %q, want %q", got, cfg.Primary.Name)
	}
}
