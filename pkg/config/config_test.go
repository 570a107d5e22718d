package config

import (
	"testing"
)

func TestDatabaseConfig_DSN(t *testing.T) {
	config := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "sgm_app",
		Password: "devpassword",
		Database: "sgm_payroll",
		SSLMode:  "disable",
	}

	want := "host=localhost port=5432 user=sgm_app password=devpassword dbname=sgm_payroll sslmode=disable"
	if got := config.DSN(); got != want {
		t.Errorf("DSN() = %v, want %v", got, want)
	}
}

func TestDatabaseConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      DatabaseConfig
		environment string
		wantErr     bool
	}{
		{
			name:        "development allows localhost defaults",
			config:      DatabaseConfig{Host: "localhost"},
			environment: "development",
			wantErr:     false,
		},
		{
			name:        "production rejects localhost",
			config:      DatabaseConfig{Host: "localhost"},
			environment: "production",
			wantErr:     true,
		},
		{
			name:        "production rejects empty host",
			config:      DatabaseConfig{},
			environment: "production",
			wantErr:     true,
		},
		{
			name:        "production accepts non-localhost host",
			config:      DatabaseConfig{Host: "prod-db.internal"},
			environment: "production",
			wantErr:     false,
		},
		{
			name:        "staging rejects localhost",
			config:      DatabaseConfig{Host: "localhost"},
			environment: "staging",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate(tt.environment)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("payroll-engine")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.BatchSize != 500 {
		t.Errorf("Engine.BatchSize = %v, want 500", cfg.Engine.BatchSize)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %v, want 5432", cfg.Database.Port)
	}
	if cfg.Server.Environment != "development" {
		t.Errorf("Server.Environment = %v, want development", cfg.Server.Environment)
	}
}
