package config

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func validConfig() *Config {
	return &Config{
		Env:                "development",
		StoreURL:           "https://store.preventia.app",
		PublicAPIKey:       "anon-key-123",
		ServiceKey:         "service-key-123",
		PublicDisplayOwner: uuid.New(),
	}
}

func TestValidate(t *testing.T) {
	t.Run("accepts a complete config", func(t *testing.T) {
		if err := validConfig().Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects missing store URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreURL = ""
		assertConfigError(t, cfg.Validate(), "STORE_URL")
	})

	t.Run("rejects non-HTTPS store URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreURL = "http://store.preventia.app"
		assertConfigError(t, cfg.Validate(), "STORE_URL")
	})

	t.Run("rejects placeholder store URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreURL = "https://tu-proyecto.supabase.co"
		assertConfigError(t, cfg.Validate(), "STORE_URL")
	})

	t.Run("rejects placeholder API key", func(t *testing.T) {
		cfg := validConfig()
		cfg.PublicAPIKey = "tu-clave-anonima"
		assertConfigError(t, cfg.Validate(), "PUBLIC_API_KEY")
	})

	t.Run("rejects missing display owner", func(t *testing.T) {
		cfg := validConfig()
		cfg.PublicDisplayOwner = uuid.Nil
		assertConfigError(t, cfg.Validate(), "PUBLIC_DISPLAY_OWNER")
	})

	t.Run("requires service key in production only", func(t *testing.T) {
		cfg := validConfig()
		cfg.ServiceKey = ""
		if err := cfg.Validate(); err != nil {
			t.Fatalf("development should not require service key: %v", err)
		}
		cfg.Env = "production"
		assertConfigError(t, cfg.Validate(), "SERVICE_KEY")
	})
}

func assertConfigError(t *testing.T, err error, key string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.Error, got %T", err)
	}
	if cfgErr.Key != key {
		t.Fatalf("expected error for %s, got %s", key, cfgErr.Key)
	}
}
