package config

import "testing"

func clearTriageEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODEL_PROVIDER", "OPENAI_API_KEY", "DEDUP_BACKEND", "DEDUP_RESET_ON_START",
		"DEDUP_SIMILARITY_THRESHOLD", "DEDUP_DATE_WINDOW_DAYS", "BATCH_CONCURRENCY",
		"DELIVERY_ENABLED", "ENABLE_WEBHOOK", "WEBHOOK_URL", "OUTPUT_BACKEND", "S3_BUCKET",
		"MODEL_RATE_LIMIT_RPS", "NER_BACKEND", "DELIVERY_TARGET",
		"INPUT_DIR", "EMAIL_HOST", "EMAIL_PORT", "IMAP_MAILBOX", "IMAP_TLS",
		"WATCH_INTERVAL_SECONDS", "WATCH_SAVE_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearTriageEnv(t)

	cfg := Load()
	if cfg.DedupBackend != DedupBackendJSONFile || cfg.DedupPath != "data/outputs/dedup_cache.json" {
		t.Fatalf("unexpected dedup defaults %q %q", cfg.DedupBackend, cfg.DedupPath)
	}
	if cfg.DedupResetOnStart {
		t.Fatalf("cache must persist across runs by default")
	}
	if cfg.DedupSimilarityThreshold != 0.9 || cfg.DedupDateWindowDays != 2 {
		t.Fatalf("unexpected near-duplicate defaults %v %d", cfg.DedupSimilarityThreshold, cfg.DedupDateWindowDays)
	}
	if cfg.BatchConcurrency != 8 || cfg.ModelTimeoutSeconds != 30 || cfg.DeliveryTimeoutSeconds != 10 {
		t.Fatalf("unexpected concurrency/timeouts %+v", cfg)
	}
	if cfg.DeliveryEnabled {
		t.Fatalf("delivery must be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearTriageEnv(t)
	t.Setenv("DEDUP_BACKEND", "Redis")
	t.Setenv("DEDUP_RESET_ON_START", "true")
	t.Setenv("MODEL_RATE_LIMIT_RPS", "2.5")
	t.Setenv("BATCH_CONCURRENCY", "not-a-number")

	cfg := Load()
	if cfg.DedupBackend != DedupBackendRedis || !cfg.DedupResetOnStart {
		t.Fatalf("unexpected dedup overrides %q %v", cfg.DedupBackend, cfg.DedupResetOnStart)
	}
	if cfg.ModelRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.ModelRateLimitRPS)
	}
	if cfg.BatchConcurrency != 8 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.BatchConcurrency)
	}
}

func TestEnableWebhookAlias(t *testing.T) {
	clearTriageEnv(t)
	t.Setenv("ENABLE_WEBHOOK", "true")
	t.Setenv("WEBHOOK_URL", "http://hooks.local/triage")

	cfg := Load()
	if !cfg.DeliveryEnabled {
		t.Fatalf("ENABLE_WEBHOOK should enable delivery")
	}

	t.Setenv("DELIVERY_ENABLED", "false")
	if Load().DeliveryEnabled {
		t.Fatalf("DELIVERY_ENABLED should take precedence over the alias")
	}
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	clearTriageEnv(t)
	cfg := Load()

	cfg.DedupBackend = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown dedup backend to fail")
	}

	cfg = Load()
	cfg.OutputBackend = OutputBackendS3
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected s3 without bucket to fail")
	}

	cfg = Load()
	cfg.DeliveryEnabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected delivery without url to fail")
	}
}

func TestEffectiveModelProvider(t *testing.T) {
	clearTriageEnv(t)
	cfg := Load()
	if cfg.EffectiveModelProvider() != ModelProviderNone {
		t.Fatalf("openai without key should run rules only")
	}
	cfg.OpenAIAPIKey = "sk-test"
	if cfg.EffectiveModelProvider() != ModelProviderOpenAI {
		t.Fatalf("expected openai with a key")
	}
	cfg.ModelProvider = ModelProviderOllama
	cfg.OpenAIAPIKey = ""
	if cfg.EffectiveModelProvider() != ModelProviderOllama {
		t.Fatalf("ollama needs no key")
	}
}

func TestWatchDefaults(t *testing.T) {
	clearTriageEnv(t)
	t.Setenv("INPUT_DIR", "mail/in")

	cfg := Load()
	if cfg.IMAPHost != "outlook.office365.com" || cfg.IMAPPort != 993 || !cfg.IMAPTLS || cfg.IMAPMailbox != "INBOX" {
		t.Fatalf("unexpected imap defaults %+v", cfg)
	}
	if cfg.WatchIntervalSeconds != 60 {
		t.Fatalf("expected 60s poll interval, got %d", cfg.WatchIntervalSeconds)
	}
	if cfg.WatchSaveDir != "mail/in" {
		t.Fatalf("saved messages should land in INPUT_DIR, got %q", cfg.WatchSaveDir)
	}

	t.Setenv("WATCH_SAVE_DIR", "mail/archive")
	if got := Load().WatchSaveDir; got != "mail/archive" {
		t.Fatalf("WATCH_SAVE_DIR override ignored, got %q", got)
	}
}
