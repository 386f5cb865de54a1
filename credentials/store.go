package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm/clause"

	"github.com/kbukum/flowkit/database"
	"github.com/kbukum/flowkit/encryption"
	"github.com/kbukum/flowkit/errors"
)

// Provider names an external service that needs an API key.
type Provider string

const (
	ProviderGemini      Provider = "gemini"
	ProviderOpenAI      Provider = "openai"
	ProviderTransloadit Provider = "transloadit"
)

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderGemini, ProviderOpenAI, ProviderTransloadit:
		return p, nil
	}
	return "", errors.InvalidInput("provider", fmt.Sprintf("unknown provider %q", s))
}

// Store persists owner keys. Key returns "" with a nil error when the owner
// has no key for the provider.
type Store interface {
	Put(ctx context.Context, ownerID string, provider Provider, key string) error
	Delete(ctx context.Context, ownerID string, provider Provider) error
	Key(ctx context.Context, ownerID string, provider Provider) (string, error)
}

// MemoryStore is a Store for tests and single-process runs.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]string)}
}

func memoryKey(ownerID string, provider Provider) string {
	return ownerID + "/" + string(provider)
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, ownerID string, provider Provider, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[memoryKey(ownerID, provider)] = key
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, ownerID string, provider Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, memoryKey(ownerID, provider))
	return nil
}

// Key implements Store.
func (s *MemoryStore) Key(_ context.Context, ownerID string, provider Provider) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[memoryKey(ownerID, provider)], nil
}

// credentialRow maps the provider_credentials table.
type credentialRow struct {
	OwnerID   string `gorm:"primaryKey;column:owner_id"`
	Provider  string `gorm:"primaryKey;column:provider"`
	SealedKey string `gorm:"column:sealed_key"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (credentialRow) TableName() string { return "provider_credentials" }

// SQLStore keeps sealed keys in the provider_credentials table. Each
// ciphertext is bound to its owner and provider, so a row copied to
// another owner fails to open.
type SQLStore struct {
	db     *database.DB
	sealer *encryption.Sealer
	now    func() time.Time
}

// NewSQLStore creates a SQLStore.
func NewSQLStore(db *database.DB, sealer *encryption.Sealer) *SQLStore {
	return &SQLStore{db: db, sealer: sealer, now: time.Now}
}

// Put implements Store, replacing any existing key.
func (s *SQLStore) Put(ctx context.Context, ownerID string, provider Provider, key string) error {
	sealed, err := s.sealer.Seal(key, memoryKey(ownerID, provider))
	if err != nil {
		return errors.Internal(err)
	}
	now := s.now().UTC()
	row := credentialRow{
		OwnerID:   ownerID,
		Provider:  string(provider),
		SealedKey: sealed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"sealed_key", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return database.FromDatabase(err, "credential", string(provider))
	}
	return nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, ownerID string, provider Provider) error {
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND provider = ?", ownerID, string(provider)).
		Delete(&credentialRow{}).Error
	if err != nil {
		return database.FromDatabase(err, "credential", string(provider))
	}
	return nil
}

// Key implements Store.
func (s *SQLStore) Key(ctx context.Context, ownerID string, provider Provider) (string, error) {
	var rows []credentialRow
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND provider = ?", ownerID, string(provider)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", database.FromDatabase(err, "credential", string(provider))
	}
	if len(rows) == 0 {
		return "", nil
	}
	key, err := s.sealer.Open(rows[0].SealedKey, memoryKey(ownerID, provider))
	if err != nil {
		return "", errors.Internal(fmt.Errorf("open %s credential: %w", provider, err))
	}
	return key, nil
}
