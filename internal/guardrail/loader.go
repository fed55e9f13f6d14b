package guardrail

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/clearquote/assistant/internal/domain"
	"github.com/clearquote/assistant/internal/store"
)

// Loader resolves the guardrail config for a tenant.
type Loader interface {
	Load(ctx context.Context, tenantID string) (domain.GuardrailConfig, error)
}

// StoreLoader reads the tenant config from the store, falling back to the
// default snapshot when the tenant has none. Readers always see an immutable
// copy; staleness is bounded by the file watcher refreshing the default.
type StoreLoader struct {
	store    store.Store
	fallback *atomic.Value // holds domain.GuardrailConfig
	watcher  *fsnotify.Watcher
}

// NewStoreLoader creates a loader with the given default config. If policyPath
// is non-empty, the file is loaded as the default and watched for changes.
func NewStoreLoader(st store.Store, defaultCfg domain.GuardrailConfig, policyPath string) (*StoreLoader, error) {
	l := &StoreLoader{store: st, fallback: &atomic.Value{}}
	l.fallback.Store(defaultCfg)

	if policyPath == "" {
		return l, nil
	}

	if err := l.reload(policyPath); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops a watch
	// on the file itself.
	if err := watcher.Add(filepath.Dir(policyPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch policy dir: %w", err)
	}
	l.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(policyPath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := l.reload(policyPath); err != nil {
					log.Printf("WARN: guardrail policy reload failed: %v", err)
				} else {
					log.Printf("INFO: guardrail policy reloaded from %s", policyPath)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("WARN: guardrail policy watcher error: %v", err)
			}
		}
	}()

	return l, nil
}

func (l *StoreLoader) reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}
	var cfg domain.GuardrailConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}
	l.fallback.Store(cfg)
	return nil
}

// Load returns the tenant config, or the default snapshot when the tenant has
// none or the store read fails.
func (l *StoreLoader) Load(ctx context.Context, tenantID string) (domain.GuardrailConfig, error) {
	cfg, err := l.store.GetGuardrailConfig(ctx, tenantID)
	if err != nil {
		return l.fallback.Load().(domain.GuardrailConfig), err
	}
	if cfg == nil {
		return l.fallback.Load().(domain.GuardrailConfig), nil
	}
	return *cfg, nil
}

// Close stops the policy file watcher.
func (l *StoreLoader) Close() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// DefaultConfig is the baseline policy applied to tenants without their own.
func DefaultConfig() domain.GuardrailConfig {
	return domain.GuardrailConfig{
		RestrictedTopicsEnabled: true,
		RestrictedTopics: []domain.RestrictedTopic{
			{
				Trigger:          "legal advice",
				RedirectGuidance: "Suggest the user consult a licensed attorney for legal questions.",
				Enabled:          true,
			},
			{
				Trigger:          "tax advice",
				RedirectGuidance: "Suggest the user consult a tax professional.",
				Enabled:          true,
			},
		},
		CustomRules: DefaultRules,
	}
}
