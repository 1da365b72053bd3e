package medication

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// mockRepo deduplicates case-insensitively like the unique index does.
type mockRepo struct {
	byLower map[string]*Medication
}

func newMockRepo() *mockRepo {
	return &mockRepo{byLower: make(map[string]*Medication)}
}

func (m *mockRepo) FindOrCreate(_ context.Context, name string) (*Medication, error) {
	key := strings.ToLower(name)
	if existing, ok := m.byLower[key]; ok {
		return existing, nil
	}
	med := &Medication{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	m.byLower[key] = med
	return med, nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	for _, med := range m.byLower {
		if med.ID == id {
			return med, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "medication not found")
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Medication, int, error) {
	var items []*Medication
	for _, med := range m.byLower {
		items = append(items, med)
	}
	return items, len(items), nil
}

func TestFindOrCreate_CaseInsensitiveDedup(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	first, err := svc.FindOrCreate(context.Background(), "Amoxicillin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.FindOrCreate(context.Background(), "amoxicillin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected one catalog entry, got two ids %s and %s", first.ID, second.ID)
	}
	if second.Name != "Amoxicillin" {
		t.Errorf("expected the original casing to win, got %q", second.Name)
	}
	if len(repo.byLower) != 1 {
		t.Errorf("expected 1 entry, got %d", len(repo.byLower))
	}
}

func TestFindOrCreate_TrimsWhitespace(t *testing.T) {
	svc := NewService(newMockRepo())

	m, err := svc.FindOrCreate(context.Background(), "  Ibuprofen  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "Ibuprofen" {
		t.Errorf("expected trimmed name, got %q", m.Name)
	}
}

func TestFindOrCreate_EmptyName(t *testing.T) {
	svc := NewService(newMockRepo())

	if _, err := svc.FindOrCreate(context.Background(), "   "); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())

	if _, err := svc.Get(context.Background(), uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
