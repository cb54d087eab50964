package credentials

import (
	"context"
	"errors"
	"testing"

	"dreamstream/internal/infra"
)

type memoryKeyStore struct {
	key    string
	getErr error
	setErr error
	sets   int
}

func (m *memoryKeyStore) GeminiAPIKey(ctx context.Context) (string, error) {
	return m.key, m.getErr
}

func (m *memoryKeyStore) SetGeminiAPIKey(ctx context.Context, key string) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.key = key
	return nil
}

func TestHostInitialKey(t *testing.T) {
	host := NewHost(" env-key ", nil, infra.NopLogger())
	ok, err := host.HasSelectedCredential(context.Background())
	if err != nil || !ok {
		t.Fatalf("HasSelectedCredential = %v, %v; want true, nil", ok, err)
	}
	key, _ := host.APIKey(context.Background())
	if key != "env-key" {
		t.Fatalf("APIKey = %q, want env-key", key)
	}
}

func TestHostWithoutKey(t *testing.T) {
	host := NewHost("", nil, infra.NopLogger())
	ok, err := host.HasSelectedCredential(context.Background())
	if err != nil || ok {
		t.Fatalf("HasSelectedCredential = %v, %v; want false, nil", ok, err)
	}
	if err := host.OpenSelectCredential(context.Background()); err != nil {
		t.Fatalf("OpenSelectCredential error: %v", err)
	}
	if ok, _ := host.HasSelectedCredential(context.Background()); ok {
		t.Fatal("selection without a staged key must not produce a credential")
	}
}

func TestHostCommitsStagedKey(t *testing.T) {
	store := &memoryKeyStore{}
	host := NewHost("", store, infra.NopLogger())
	host.Stage(" typed-key ")
	if err := host.OpenSelectCredential(context.Background()); err != nil {
		t.Fatalf("OpenSelectCredential error: %v", err)
	}
	key, _ := host.APIKey(context.Background())
	if key != "typed-key" {
		t.Fatalf("APIKey = %q, want typed-key", key)
	}
	if store.key != "typed-key" || store.sets != 1 {
		t.Fatalf("store not updated: key=%q sets=%d", store.key, store.sets)
	}
}

func TestHostKeepsKeyWhenPersistFails(t *testing.T) {
	store := &memoryKeyStore{setErr: errors.New("db down")}
	host := NewHost("", store, infra.NopLogger())
	host.Stage("typed-key")
	if err := host.OpenSelectCredential(context.Background()); err != nil {
		t.Fatalf("OpenSelectCredential error: %v", err)
	}
	if key, _ := host.APIKey(context.Background()); key != "typed-key" {
		t.Fatalf("APIKey = %q, want typed-key", key)
	}
}

func TestHostReloadsFromStore(t *testing.T) {
	store := &memoryKeyStore{}
	host := NewHost("", store, infra.NopLogger())
	if ok, _ := host.HasSelectedCredential(context.Background()); ok {
		t.Fatal("expected no credential before provisioning")
	}
	store.key = "provisioned"
	if err := host.OpenSelectCredential(context.Background()); err != nil {
		t.Fatalf("OpenSelectCredential error: %v", err)
	}
	if key, _ := host.APIKey(context.Background()); key != "provisioned" {
		t.Fatalf("APIKey = %q, want provisioned", key)
	}
}

func TestHostStoreErrorPropagates(t *testing.T) {
	host := NewHost("", &memoryKeyStore{getErr: errors.New("timeout")}, infra.NopLogger())
	if _, err := host.HasSelectedCredential(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
}

func TestHostForgetsRejectedKey(t *testing.T) {
	ctx := context.Background()
	host := NewHost("rejected-key", nil, infra.NopLogger())
	if err := host.ForgetSelectedCredential(ctx); err != nil {
		t.Fatalf("ForgetSelectedCredential error: %v", err)
	}
	if ok, _ := host.HasSelectedCredential(ctx); ok {
		t.Fatal("rejected key must not count as selected")
	}
	if err := host.OpenSelectCredential(ctx); err != nil {
		t.Fatalf("OpenSelectCredential error: %v", err)
	}
	if ok, _ := host.HasSelectedCredential(ctx); ok {
		t.Fatal("an empty selection must not bring the rejected key back")
	}

	host.Stage("fresh-key")
	if err := host.OpenSelectCredential(ctx); err != nil {
		t.Fatalf("OpenSelectCredential error: %v", err)
	}
	if key, _ := host.APIKey(ctx); key != "fresh-key" {
		t.Fatalf("APIKey = %q, want fresh-key", key)
	}
}

func TestHostSkipsRejectedKeyInStore(t *testing.T) {
	ctx := context.Background()
	store := &memoryKeyStore{key: "stored-key"}
	host := NewHost("", store, infra.NopLogger())
	if key, _ := host.APIKey(ctx); key != "stored-key" {
		t.Fatalf("APIKey = %q, want stored-key", key)
	}
	if err := host.ForgetSelectedCredential(ctx); err != nil {
		t.Fatalf("ForgetSelectedCredential error: %v", err)
	}

	tests := []struct {
		name    string
		stored  string
		wantOK  bool
		wantKey string
	}{
		{"same key reloaded", "stored-key", false, ""},
		{"different key provisioned", "rotated-key", true, "rotated-key"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store.key = tc.stored
			if err := host.OpenSelectCredential(ctx); err != nil {
				t.Fatalf("OpenSelectCredential error: %v", err)
			}
			ok, err := host.HasSelectedCredential(ctx)
			if err != nil || ok != tc.wantOK {
				t.Fatalf("HasSelectedCredential = %v, %v; want %v", ok, err, tc.wantOK)
			}
			if key, _ := host.APIKey(ctx); key != tc.wantKey {
				t.Fatalf("APIKey = %q, want %q", key, tc.wantKey)
			}
		})
	}
}

func TestHostUnstage(t *testing.T) {
	ctx := context.Background()
	host := NewHost("", nil, infra.NopLogger())
	host.Stage("typed-key")
	host.Unstage()
	if err := host.OpenSelectCredential(ctx); err != nil {
		t.Fatalf("OpenSelectCredential error: %v", err)
	}
	if ok, _ := host.HasSelectedCredential(ctx); ok {
		t.Fatal("unstaged key must not be committed")
	}
}
