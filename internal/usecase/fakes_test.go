package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
	"github.com/totegamma/caselaw-dupcheck/internal/matcher"
)

type fakeIndex struct {
	mu      sync.Mutex
	units   map[domain.UnitID]domain.UnitAttributes
	changed []domain.UnitID
	since   time.Time
	err     error
	block   bool
}

func newFakeIndex(units ...domain.UnitAttributes) *fakeIndex {
	idx := &fakeIndex{units: make(map[domain.UnitID]domain.UnitAttributes)}
	for _, u := range units {
		idx.units[u.ID] = u
	}
	return idx
}

func (f *fakeIndex) put(u domain.UnitAttributes) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units[u.ID] = u
}

func (f *fakeIndex) all() []domain.UnitAttributes {
	units := make([]domain.UnitAttributes, 0, len(f.units))
	for _, u := range f.units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID.String() < units[j].ID.String() })
	return units
}

func (f *fakeIndex) GetAttributeIndex(ctx context.Context, ids []domain.UnitID) ([]domain.UnitAttributes, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if ids == nil {
		return f.all(), nil
	}
	units := make([]domain.UnitAttributes, 0, len(ids))
	for _, id := range ids {
		if u, ok := f.units[id]; ok {
			units = append(units, u)
		}
	}
	return units, nil
}

func (f *fakeIndex) GetFileNumberFrequencies(ctx context.Context, values []string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := matcher.CountFileNumbers(f.all())
	result := make(map[string]int64, len(values))
	for _, v := range values {
		if c, ok := counts[v]; ok {
			result[v] = c
		}
	}
	return result, nil
}

func (f *fakeIndex) FindSharing(ctx context.Context, fileNumbers, eclis []string) ([]domain.UnitAttributes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]struct{})
	for _, v := range append(append([]string{}, fileNumbers...), eclis...) {
		wanted[v] = struct{}{}
	}
	result := make([]domain.UnitAttributes, 0)
	for _, u := range f.all() {
		for _, v := range append(append([]string{}, u.FileNumbers...), u.ECLIs...) {
			if _, ok := wanted[matcher.Fold(v)]; ok {
				result = append(result, u)
				break
			}
		}
	}
	return result, nil
}

func (f *fakeIndex) ChangedSince(ctx context.Context, since time.Time) ([]domain.UnitID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	return f.changed, nil
}

func (f *fakeIndex) DisabledUnits(ctx context.Context) ([]domain.UnitID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]domain.UnitID, 0)
	for _, u := range f.all() {
		if !u.DuplicateCheckEnabled {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

// memRelations keeps relations and the suppression ledger in memory. A
// transaction works on a copy that replaces the original on success.
type memRelations struct {
	mu         *sync.Mutex
	rows       map[domain.Pair]domain.DuplicateRelation
	suppressed map[string]struct{}
	conflicts  *int
}

func newMemRelations() *memRelations {
	conflicts := 0
	return &memRelations{
		mu:         &sync.Mutex{},
		rows:       make(map[domain.Pair]domain.DuplicateRelation),
		suppressed: make(map[string]struct{}),
		conflicts:  &conflicts,
	}
}

func (m *memRelations) snapshot() map[domain.Pair]domain.DuplicateRelation {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make(map[domain.Pair]domain.DuplicateRelation, len(m.rows))
	for k, v := range m.rows {
		rows[k] = v
	}
	return rows
}

func (m *memRelations) Transaction(ctx context.Context, fn func(store RelationStore) error) error {
	tx := newMemRelations()
	tx.rows = m.snapshot()
	tx.conflicts = m.conflicts
	m.mu.Lock()
	for v := range m.suppressed {
		tx.suppressed[v] = struct{}{}
	}
	m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows, m.suppressed = tx.rows, tx.suppressed
	return nil
}

func (m *memRelations) Get(ctx context.Context, pair domain.Pair) (*domain.DuplicateRelation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.rows[pair]
	if !ok {
		return nil, domain.NotFoundError{Resource: "duplicate relation"}
	}
	return &rel, nil
}

func (m *memRelations) UpsertMany(ctx context.Context, relations []domain.DuplicateRelation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *m.conflicts > 0 {
		*m.conflicts--
		return domain.ErrPersistenceConflict
	}
	for _, rel := range relations {
		if existing, ok := m.rows[rel.Pair]; ok && existing.Status == domain.RelationStatusIgnored {
			continue
		} else if ok {
			existing.Status = rel.Status
			rel = existing
		}
		m.rows[rel.Pair] = rel
	}
	return nil
}

func (m *memRelations) DeleteMany(ctx context.Context, pairs []domain.Pair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pairs {
		delete(m.rows, p)
	}
	return nil
}

func matches(rel domain.DuplicateRelation, filter RelationFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			found = found || rel.Status == s
		}
		if !found {
			return false
		}
	}
	if len(filter.AnyMember) == 0 {
		return true
	}
	for _, id := range filter.AnyMember {
		if rel.Pair.Contains(id) {
			return true
		}
	}
	return false
}

func (m *memRelations) SetStatusWhere(ctx context.Context, filter RelationFilter, status domain.RelationStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for p, rel := range m.rows {
		if !matches(rel, filter) || rel.Status == status {
			continue
		}
		rel.Status = status
		m.rows[p] = rel
		n++
	}
	return n, nil
}

func (m *memRelations) AllCurrentPairs(ctx context.Context, filter RelationFilter) ([]domain.Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pairs := make([]domain.Pair, 0, len(m.rows))
	for p, rel := range m.rows {
		if matches(rel, filter) {
			pairs = append(pairs, p)
		}
	}
	domain.SortPairs(pairs)
	return pairs, nil
}

func (m *memRelations) FindByUnit(ctx context.Context, id domain.UnitID, statuses []domain.RelationStatus) ([]domain.DuplicateRelation, error) {
	pairs, _ := m.AllCurrentPairs(ctx, RelationFilter{Statuses: statuses, AnyMember: []domain.UnitID{id}})
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.DuplicateRelation, 0, len(pairs))
	for _, p := range pairs {
		result = append(result, m.rows[p])
	}
	return result, nil
}

func (m *memRelations) SuppressedFileNumbers(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := make([]string, 0, len(m.suppressed))
	for v := range m.suppressed {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func (m *memRelations) MarkFileNumbers(ctx context.Context, suppressed, released []string, replace bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if replace {
		m.suppressed = make(map[string]struct{})
	}
	for _, v := range released {
		delete(m.suppressed, v)
	}
	for _, v := range suppressed {
		m.suppressed[v] = struct{}{}
	}
	return nil
}

// fakeRuns implements the run methods a cycle uses. Listing is left to the
// embedded nil interface.
type fakeRuns struct {
	RunRepository
	mu   sync.Mutex
	runs []domain.Run
}

func (f *fakeRuns) Create(ctx context.Context, run *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeRuns) Update(ctx context.Context, run *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.runs {
		if f.runs[i].ID == run.ID {
			f.runs[i] = *run
			return nil
		}
	}
	return domain.NotFoundError{Resource: "run"}
}

func (f *fakeRuns) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, domain.NotFoundError{Resource: "run"}
}

func (f *fakeRuns) LastSucceeded(ctx context.Context) (*domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].Result == domain.RunResultSucceeded {
			r := f.runs[i]
			return &r, nil
		}
	}
	return nil, domain.NotFoundError{Resource: "run"}
}
