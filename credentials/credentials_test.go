package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/kbukum/flowkit/database/dbtest"
	"github.com/kbukum/flowkit/encryption"
)

func newSealer(t *testing.T) *encryption.Sealer {
	t.Helper()
	s, err := encryption.New(encryption.Config{Key: "0123456789abcdef-test"})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSQLStore_PutKeyDelete(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(dbtest.Open(t), newSealer(t))

	if key, err := store.Key(ctx, "user-1", ProviderGemini); err != nil || key != "" {
		t.Fatalf("missing key = %q, %v", key, err)
	}
	if err := store.Put(ctx, "user-1", ProviderGemini, "g-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "user-1", ProviderGemini, "g-2"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if key, err := store.Key(ctx, "user-1", ProviderGemini); err != nil || key != "g-2" {
		t.Fatalf("Key = %q, %v", key, err)
	}
	if key, _ := store.Key(ctx, "user-2", ProviderGemini); key != "" {
		t.Fatalf("other owner sees %q", key)
	}
	if err := store.Delete(ctx, "user-1", ProviderGemini); err != nil {
		t.Fatal(err)
	}
	if key, _ := store.Key(ctx, "user-1", ProviderGemini); key != "" {
		t.Fatalf("deleted key = %q", key)
	}
}

func TestSQLStore_KeysAreSealed(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	store := NewSQLStore(db, newSealer(t))
	if err := store.Put(ctx, "user-1", ProviderOpenAI, "sk-plain"); err != nil {
		t.Fatal(err)
	}

	var row credentialRow
	if err := db.WithContext(ctx).First(&row, "owner_id = ?", "user-1").Error; err != nil {
		t.Fatal(err)
	}
	if row.SealedKey == "" || row.SealedKey == "sk-plain" {
		t.Fatalf("sealed_key = %q", row.SealedKey)
	}

	// A row moved to another owner must not open.
	if err := db.WithContext(ctx).Model(&credentialRow{}).
		Where("owner_id = ?", "user-1").Update("owner_id", "user-2").Error; err != nil {
		t.Fatal(err)
	}
	if _, err := store.Key(ctx, "user-2", ProviderOpenAI); err == nil {
		t.Fatal("expected authentication failure")
	}
}

type failingStore struct{ MemoryStore }

func (*failingStore) Key(context.Context, string, Provider) (string, error) {
	return "", errors.New("store down")
}

func TestResolver_Lookup(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	_ = mem.Put(ctx, "user-1", ProviderGemini, "own-key")
	r := NewResolver(mem, Defaults{GeminiAPIKey: "default-gemini", TransloaditKey: "tl"}, nil)

	tests := []struct {
		name     string
		caller   string
		provider Provider
		want     string
	}{
		{"own key wins", "user-1", ProviderGemini, "own-key"},
		{"default for other caller", "user-2", ProviderGemini, "default-gemini"},
		{"default without caller", "", ProviderGemini, "default-gemini"},
		{"default transloadit", "user-1", ProviderTransloadit, "tl"},
		{"nothing configured", "user-1", ProviderOpenAI, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Lookup(ctx, tt.caller, tt.provider); got != tt.want {
				t.Errorf("Lookup = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_StoreErrorFallsBack(t *testing.T) {
	r := NewResolver(&failingStore{}, Defaults{OpenAIAPIKey: "fallback"}, nil)
	if got := r.Lookup(context.Background(), "user-1", ProviderOpenAI); got != "fallback" {
		t.Fatalf("Lookup = %q", got)
	}
}

func TestParseProvider(t *testing.T) {
	if p, err := ParseProvider("transloadit"); err != nil || p != ProviderTransloadit {
		t.Fatalf("got %q, %v", p, err)
	}
	if _, err := ParseProvider("trigger"); err == nil {
		t.Fatal("unknown provider accepted")
	}
}
