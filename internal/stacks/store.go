package stacks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

// ErrStackExists is returned by Insert when a stack with the same
// (project id, signature hash) already exists. The caller falls back to
// the found path rather than creating a duplicate.
var ErrStackExists = errors.New("stack already exists for signature")

// ErrStackNotFound is returned by occurrence updates for unknown stacks.
var ErrStackNotFound = errors.New("stack not found")

// Store is the stack persistence contract. Implementations must enforce
// uniqueness on (project id, signature hash) and apply occurrence updates
// atomically so concurrent submitters never lose counts.
type Store interface {
	// FindBySignature returns the stack for (projectID, hash), or nil if
	// none exists.
	FindBySignature(ctx context.Context, projectID, hash string) (*models.Stack, error)

	// Insert creates the stack, returning ErrStackExists on a signature
	// conflict.
	Insert(ctx context.Context, stack *models.Stack) error

	// AddOccurrence atomically increments the occurrence count, advances
	// the last-occurrence timestamp, and unions tags into the stack's tag
	// set. Returns the updated stack.
	AddOccurrence(ctx context.Context, stackID string, date time.Time, tags models.TagSet) (*models.Stack, error)

	// MarkRegressed clears date_fixed and flags the stack as regressed.
	MarkRegressed(ctx context.Context, stackID string) error
}

// MemoryStore is an in-process Store for tests and single-node runs.
type MemoryStore struct {
	mu    sync.Mutex
	bySig map[string]*models.Stack
	byID  map[string]*models.Stack
}

// NewMemoryStore creates an empty in-memory stack store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySig: make(map[string]*models.Stack),
		byID:  make(map[string]*models.Stack),
	}
}

func sigKey(projectID, hash string) string {
	return projectID + ":" + hash
}

func copyStack(s *models.Stack) *models.Stack {
	cp := *s
	cp.Tags = append(models.TagSet(nil), s.Tags...)
	cp.SignatureInfo = append([]models.SignatureItem(nil), s.SignatureInfo...)
	if s.DateFixed != nil {
		fixed := *s.DateFixed
		cp.DateFixed = &fixed
	}
	return &cp
}

func (m *MemoryStore) FindBySignature(_ context.Context, projectID, hash string) (*models.Stack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.bySig[sigKey(projectID, hash)]
	if !ok {
		return nil, nil
	}
	return copyStack(s), nil
}

func (m *MemoryStore) Insert(_ context.Context, stack *models.Stack) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sigKey(stack.ProjectID, stack.SignatureHash)
	if _, exists := m.bySig[key]; exists {
		return ErrStackExists
	}
	cp := copyStack(stack)
	m.bySig[key] = cp
	m.byID[cp.ID] = cp
	return nil
}

func (m *MemoryStore) AddOccurrence(_ context.Context, stackID string, date time.Time, tags models.TagSet) (*models.Stack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[stackID]
	if !ok {
		return nil, ErrStackNotFound
	}
	s.TotalOccurrences++
	if date.After(s.LastOccurrence) {
		s.LastOccurrence = date
	}
	if date.Before(s.FirstOccurrence) {
		s.FirstOccurrence = date
	}
	s.Tags.Add(tags...)
	return copyStack(s), nil
}

func (m *MemoryStore) MarkRegressed(_ context.Context, stackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[stackID]
	if !ok {
		return ErrStackNotFound
	}
	s.DateFixed = nil
	s.IsRegressed = true
	return nil
}
