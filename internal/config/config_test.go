package config

import (
	"os"
	"testing"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg := Load()

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("Expected HTTP_ADDR default ':8080', got '%s'", cfg.HTTP.Addr)
	}

	if !cfg.DBEnabled {
		t.Error("Expected DB_ENABLED default true")
	}

	if cfg.Database.Host != "localhost" {
		t.Errorf("Expected DB_HOST default 'localhost', got '%s'", cfg.Database.Host)
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("Expected DB_PORT default 5432, got %d", cfg.Database.Port)
	}

	if cfg.Database.Database != "poem" {
		t.Errorf("Expected DB_NAME default 'poem', got '%s'", cfg.Database.Database)
	}

	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected REDIS_ADDR default 'localhost:6379', got '%s'", cfg.Redis.Addr)
	}

	if cfg.WebAPI.BaseURL != "https://api.devel.argo.grnet.gr" {
		t.Errorf("Expected WEBAPI_URL default, got '%s'", cfg.WebAPI.BaseURL)
	}

	if cfg.WebAPI.TimeoutSeconds != 180 {
		t.Errorf("Expected WEBAPI_TIMEOUT default 180, got %d", cfg.WebAPI.TimeoutSeconds)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("DB_ENABLED", "false")
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("WEBAPI_URL", "https://api.argo.grnet.gr")
	os.Setenv("WEBAPI_TIMEOUT", "30")
	os.Setenv("LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("HTTP_ADDR")
		os.Unsetenv("DB_ENABLED")
		os.Unsetenv("DB_HOST")
		os.Unsetenv("DB_NAME")
		os.Unsetenv("WEBAPI_URL")
		os.Unsetenv("WEBAPI_TIMEOUT")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg := Load()

	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("Expected HTTP_ADDR ':9090', got '%s'", cfg.HTTP.Addr)
	}

	if cfg.DBEnabled {
		t.Error("Expected DB_ENABLED false")
	}

	if cfg.Database.Host != "test-host" {
		t.Errorf("Expected DB_HOST 'test-host', got '%s'", cfg.Database.Host)
	}

	if cfg.Database.Database != "test-db" {
		t.Errorf("Expected DB_NAME 'test-db', got '%s'", cfg.Database.Database)
	}

	if cfg.WebAPI.BaseURL != "https://api.argo.grnet.gr" {
		t.Errorf("Expected WEBAPI_URL 'https://api.argo.grnet.gr', got '%s'", cfg.WebAPI.BaseURL)
	}

	if cfg.WebAPI.TimeoutSeconds != 30 {
		t.Errorf("Expected WEBAPI_TIMEOUT 30, got %d", cfg.WebAPI.TimeoutSeconds)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected LOG_LEVEL 'debug', got '%s'", cfg.Log.Level)
	}
}

func TestParseInt(t *testing.T) {
	if v := parseInt("42", 7); v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}

	if v := parseInt("not-a-number", 7); v != 7 {
		t.Errorf("Expected fallback 7, got %d", v)
	}
}
