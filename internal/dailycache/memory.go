package dailycache

import (
	"context"
	"fmt"
	"sync"

	"github.com/magabrotheeeer/tarot-miniapp/internal/models"
)

// MemoryStore хранилище в памяти процесса. Записи теряются при перезапуске.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]models.DailyCardRecord
	its  map[string]models.Interpretation
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]models.DailyCardRecord),
		its:  make(map[string]models.Interpretation),
	}
}

// Lookup реализует Store.
func (s *MemoryStore) Lookup(_ context.Context, userID int, day string) (*models.DailyCardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[Key(NamespaceCard, userID, day)]
	if !ok {
		return nil, nil
	}
	if it, ok := s.its[Key(NamespaceInterpretation, userID, day)]; ok {
		rec.Interpretation = &it
	}
	return &rec, nil
}

// Create реализует Store.
func (s *MemoryStore) Create(_ context.Context, rec models.DailyCardRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(NamespaceCard, rec.UserID, rec.Date)
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	rec.Interpretation = nil
	s.data[key] = rec
	return true, nil
}

// SaveInterpretation реализует Store.
func (s *MemoryStore) SaveInterpretation(_ context.Context, userID int, day string, it models.Interpretation) error {
	const op = "dailycache.MemoryStore.SaveInterpretation"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[Key(NamespaceCard, userID, day)]; !ok {
		return fmt.Errorf("%s: %w", op, ErrRecordMissing)
	}
	s.its[Key(NamespaceInterpretation, userID, day)] = it
	return nil
}
