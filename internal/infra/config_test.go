package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaultStorageBaseURL(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:8080/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigHonorsExplicitStorageBaseURL(t *testing.T) {
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/static")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "https://cdn.example.com/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigProviderDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", " sk-test ")
	t.Setenv("IMAGE_TIMEOUT", "")
	t.Setenv("VIDEO_TIMEOUT", "")
	t.Setenv("RECOMMENDED_IMAGE_PROVIDER", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("OpenAIAPIKey = %q, want trimmed key", cfg.OpenAIAPIKey)
	}
	if cfg.ImageTimeout != 60*time.Second {
		t.Fatalf("ImageTimeout = %s, want 60s", cfg.ImageTimeout)
	}
	if cfg.VideoTimeout != 5*time.Minute {
		t.Fatalf("VideoTimeout = %s, want 5m", cfg.VideoTimeout)
	}
	if cfg.RecommendedImage != "openai-dalle3" {
		t.Fatalf("RecommendedImage = %q", cfg.RecommendedImage)
	}
	if cfg.HistoryEnabled() {
		t.Fatalf("history should be disabled without DATABASE_URL")
	}
}

func TestLoadConfigTimeouts(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", value: "90", want: 90 * time.Second},
		{name: "duration", value: "2m30s", want: 150 * time.Second},
		{name: "zero", value: "0", wantErr: true},
		{name: "garbage", value: "soon", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("VIDEO_TIMEOUT", tc.value)
			cfg, err := LoadConfig()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig returned error: %v", err)
			}
			if cfg.VideoTimeout != tc.want {
				t.Fatalf("VideoTimeout = %s, want %s", cfg.VideoTimeout, tc.want)
			}
		})
	}
}

func TestLoadConfigCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSOrigins) != len(expected) {
		t.Fatalf("CORSOrigins mismatch: got %#v want %#v", cfg.CORSOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSOrigins[i] != origin {
			t.Fatalf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], origin)
		}
	}
}

func TestLoadConfigRejectsNegativeRateLimit(t *testing.T) {
	t.Setenv("PROVIDER_RATE_LIMIT_PER_MINUTE", "-1")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for negative provider rate limit")
	}
}

func TestLoadConfigDBMaxConns(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.DBMaxConns != 10 {
		t.Fatalf("DBMaxConns = %d, want 10", cfg.DBMaxConns)
	}

	t.Setenv("DB_MAX_CONNS", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for zero DB_MAX_CONNS")
	}
}
