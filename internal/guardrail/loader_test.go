package guardrail

import (
	"context"
	"testing"

	"github.com/clearquote/assistant/internal/domain"
	"github.com/clearquote/assistant/tests/helpers"
)

func TestStoreLoaderFallsBackToDefault(t *testing.T) {
	st := helpers.NewTestSQLiteStore(t)
	l, err := NewStoreLoader(st, DefaultConfig(), "")
	if err != nil {
		t.Fatalf("NewStoreLoader failed: %v", err)
	}
	defer l.Close()

	cfg, err := l.Load(context.Background(), "tenant-without-config")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.RestrictedTopicsEnabled || len(cfg.RestrictedTopics) == 0 {
		t.Fatalf("expected the default snapshot, got %+v", cfg)
	}
}

func TestStoreLoaderPrefersTenantConfig(t *testing.T) {
	st := helpers.NewTestSQLiteStore(t)
	tenantCfg := &domain.GuardrailConfig{
		RestrictedTopicsEnabled: true,
		RestrictedTopics: []domain.RestrictedTopic{
			{Trigger: "coverage guarantees", RedirectGuidance: "never guarantee coverage", Enabled: true},
		},
	}
	if err := st.UpsertGuardrailConfig(context.Background(), "t1", tenantCfg); err != nil {
		t.Fatalf("UpsertGuardrailConfig failed: %v", err)
	}

	l, err := NewStoreLoader(st, DefaultConfig(), "")
	if err != nil {
		t.Fatalf("NewStoreLoader failed: %v", err)
	}
	defer l.Close()

	cfg, err := l.Load(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.RestrictedTopics) != 1 || cfg.RestrictedTopics[0].Trigger != "coverage guarantees" {
		t.Fatalf("expected the tenant config, got %+v", cfg)
	}
}

func TestDefaultConfigMatchesItsOwnTriggers(t *testing.T) {
	m := NewMatcher()
	cfg := DefaultConfig()

	match := m.Evaluate(context.Background(), "can you give me tax advice on this payout", cfg)
	if match.TriggeredTopic == nil || match.TriggeredTopic.Trigger != "tax advice" {
		t.Fatalf("default config should match its own triggers, got %+v", match)
	}
}
