package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WSF_API_ACCESS_CODE", "test-code")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.WSF.BaseURL != "https://www.wsdot.wa.gov/ferries/api" {
		t.Errorf("BaseURL = %s", cfg.WSF.BaseURL)
	}
	if cfg.WSF.LongInterval != 30*time.Second {
		t.Errorf("LongInterval = %v, want 30s", cfg.WSF.LongInterval)
	}
	if cfg.WSF.ShortInterval != 5*time.Second {
		t.Errorf("ShortInterval = %v, want 5s", cfg.WSF.ShortInterval)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Driver = %s, want postgres", cfg.Database.Driver)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.WSF.Location().String() != "America/Los_Angeles" {
		t.Errorf("Location() = %s", cfg.WSF.Location())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WSF_API_ACCESS_CODE", "test-code")
	t.Setenv("WSF_SHORT_INTERVAL", "2s")
	t.Setenv("WSF_SCHEDULE_CONCURRENCY", "3")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/wsf.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WSF.ShortInterval != 2*time.Second {
		t.Errorf("ShortInterval = %v, want 2s", cfg.WSF.ShortInterval)
	}
	if cfg.WSF.ScheduleConcurrency != 3 {
		t.Errorf("ScheduleConcurrency = %d, want 3", cfg.WSF.ScheduleConcurrency)
	}
	if got := cfg.Database.ConnectionString(); got != "/tmp/wsf.db" {
		t.Errorf("ConnectionString() = %s", got)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing access code", map[string]string{}},
		{"bad driver", map[string]string{"WSF_API_ACCESS_CODE": "x", "DB_DRIVER": "mysql"}},
		{"short retention", map[string]string{"WSF_API_ACCESS_CODE": "x", "CAPACITY_RETENTION": "48h"}},
		{"bad timezone", map[string]string{"WSF_API_ACCESS_CODE": "x", "WSF_TIMEZONE": "Mars/Olympus"}},
		{"zero concurrency", map[string]string{"WSF_API_ACCESS_CODE": "x", "WSF_SCHEDULE_CONCURRENCY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WSF_API_ACCESS_CODE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() expected validation error")
			}
		})
	}
}

func TestPostgresConnectionString(t *testing.T) {
	db := DatabaseConfig{Driver: "postgres", Host: "db", Port: "5433", User: "wsf", Password: "pw", DBName: "ferries"}
	want := "host=db port=5433 user=wsf password=pw dbname=ferries sslmode=disable"
	if got := db.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %s, want %s", got, want)
	}
}
