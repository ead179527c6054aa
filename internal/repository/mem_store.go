package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/estimate-app/backend/internal/model"
	"github.com/google/uuid"
)

// MemStore is an in-process store for local development and tests. All
// reads and writes copy values, so callers never share memory with the store.
type MemStore struct {
	mu        sync.Mutex
	now       func() time.Time
	last      time.Time
	estimates map[string]*model.Estimate
	system    map[string]*model.Template
	user      map[string]*model.Template

	Estimates *MemEstimateRepository
	Templates *MemTemplateRepository
}

// NewMemStore returns an empty store seeded with the default system templates.
func NewMemStore() *MemStore {
	s := &MemStore{
		now:       time.Now,
		estimates: make(map[string]*model.Estimate),
		system:    make(map[string]*model.Template),
		user:      make(map[string]*model.Template),
	}
	s.Estimates = &MemEstimateRepository{s: s}
	s.Templates = &MemTemplateRepository{s: s}
	for _, t := range model.DefaultSystemTemplates() {
		t.ID = uuid.NewString()
		now := s.tick()
		t.CreatedAt, t.UpdatedAt = now, now
		s.system[t.ID] = t
	}
	return s
}

// tick returns a strictly increasing timestamp so that creation order is
// always recoverable from CreatedAt. Callers hold mu.
func (s *MemStore) tick() time.Time {
	now := s.now()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

// Ping always succeeds.
func (s *MemStore) Ping(ctx context.Context) error { return ctx.Err() }

func copyEstimate(e *model.Estimate) *model.Estimate {
	c := *e
	c.LineItems = make([]*model.LineItem, len(e.LineItems))
	for i, item := range e.LineItems {
		it := *item
		c.LineItems[i] = &it
	}
	c.RevisionLogs = make([]*model.RevisionLog, len(e.RevisionLogs))
	for i, l := range e.RevisionLogs {
		entry := *l
		c.RevisionLogs[i] = &entry
	}
	if e.TemplateID != nil {
		id := *e.TemplateID
		c.TemplateID = &id
	}
	if e.EstimatedStartDate != nil {
		d := *e.EstimatedStartDate
		c.EstimatedStartDate = &d
	}
	if e.EstimatedDurationDays != nil {
		n := *e.EstimatedDurationDays
		c.EstimatedDurationDays = &n
	}
	if e.EstimatedEndDate != nil {
		d := *e.EstimatedEndDate
		c.EstimatedEndDate = &d
	}
	return &c
}

func copyTemplate(t *model.Template) *model.Template {
	c := *t
	return &c
}

// MemEstimateRepository is the EstimateRepository view of a MemStore.
type MemEstimateRepository struct{ s *MemStore }

func (r *MemEstimateRepository) Insert(ctx context.Context, e *model.Estimate) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.TemplateID != nil {
		if _, ok := s.user[*e.TemplateID]; !ok {
			return apperr.Validation("estimate.insert", "template_id: references a missing record")
		}
	}
	for _, other := range s.estimates {
		if other.ShareToken == e.ShareToken {
			return fmt.Errorf("estimate.insert: duplicate share token")
		}
	}
	now := s.tick()
	e.ID = uuid.NewString()
	e.CreatedAt, e.UpdatedAt = now, now
	s.stampItems(e.ID, e.LineItems, now)
	if e.RevisionLogs == nil {
		e.RevisionLogs = []*model.RevisionLog{}
	}
	s.estimates[e.ID] = copyEstimate(e)
	return nil
}

func (s *MemStore) stampItems(estimateID string, items []*model.LineItem, now time.Time) {
	for i, item := range items {
		item.ID = uuid.NewString()
		item.EstimateID = estimateID
		item.OrderIndex = i
		item.CreatedAt, item.UpdatedAt = now, now
	}
}

func (r *MemEstimateRepository) GetByID(ctx context.Context, id string) (*model.Estimate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.estimates[id]
	if !ok {
		return nil, apperr.NotFound("estimate.get")
	}
	return copyEstimate(e), nil
}

func (r *MemEstimateRepository) GetByShareToken(ctx context.Context, token string) (*model.Estimate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.estimates {
		if e.ShareToken == token {
			return copyEstimate(e), nil
		}
	}
	return nil, apperr.NotFound("estimate.get_shared")
}

func (r *MemEstimateRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Estimate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := []*model.Estimate{}
	for _, e := range r.s.estimates {
		if e.UserID == userID {
			c := copyEstimate(e)
			c.LineItems, c.RevisionLogs = nil, nil
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r *MemEstimateRepository) ReplaceLineItems(ctx context.Context, id string, items []*model.LineItem) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.estimates[id]
	if !ok {
		return apperr.NotFound("estimate.replace_line_items")
	}
	if _, err := model.ComputeSubtotal(items); err != nil {
		return err
	}
	now := s.tick()
	s.stampItems(id, items, now)
	stored := copyEstimate(&model.Estimate{LineItems: items})
	if err := e.SetLineItems(stored.LineItems); err != nil {
		return err
	}
	e.UpdatedAt = now
	return nil
}

func (r *MemEstimateRepository) AppendRevision(ctx context.Context, id string, entry *model.RevisionLog, newUsedCount int) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.estimates[id]
	if !ok {
		return apperr.NotFound("estimate.append_revision")
	}
	if e.RevisionsUsed != newUsedCount-1 || entry.UsedNumber != newUsedCount {
		return ErrRevisionConflict
	}
	entry.ID = uuid.NewString()
	entry.EstimateID = id
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.tick()
	}
	stored := *entry
	e.RevisionLogs = append(e.RevisionLogs, &stored)
	e.RevisionsUsed = newUsedCount
	e.UpdatedAt = s.tick()
	return nil
}

func (r *MemEstimateRepository) UpdatePolicy(ctx context.Context, id string, revisionLimit int, extraRevisionRate int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.estimates[id]
	if !ok {
		return apperr.NotFound("estimate.update_policy")
	}
	e.RevisionLimit = revisionLimit
	e.ExtraRevisionRate = extraRevisionRate
	e.UpdatedAt = r.s.tick()
	return nil
}

func (r *MemEstimateRepository) UpdateDetails(ctx context.Context, id string, title string, d model.EstimateDetails) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.estimates[id]
	if !ok {
		return apperr.NotFound("estimate.update_details")
	}
	e.Title = title
	e.Notes = d.Notes
	e.TermsAndConditions = d.TermsAndConditions
	e.EstimatedStartDate = d.EstimatedStartDate
	e.EstimatedDurationDays = d.EstimatedDurationDays
	e.EstimatedEndDate = d.EndDate()
	e.UpdatedAt = r.s.tick()
	return nil
}

// MemTemplateRepository is the TemplateRepository view of a MemStore.
type MemTemplateRepository struct{ s *MemStore }

func sortedByName(m map[string]*model.Template, keep func(*model.Template) bool) []*model.Template {
	list := []*model.Template{}
	for _, t := range m {
		if keep(t) {
			list = append(list, copyTemplate(t))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func (r *MemTemplateRepository) ListSystem(ctx context.Context) ([]*model.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedByName(r.s.system, func(*model.Template) bool { return true }), nil
}

func (r *MemTemplateRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedByName(r.s.user, func(t *model.Template) bool { return t.OwnerUserID == userID }), nil
}

func (r *MemTemplateRepository) GetSystemByID(ctx context.Context, id string) (*model.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.system[id]
	if !ok {
		return nil, apperr.NotFound("template.get_system")
	}
	return copyTemplate(t), nil
}

func (r *MemTemplateRepository) GetUserByID(ctx context.Context, id string) (*model.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.user[id]
	if !ok {
		return nil, apperr.NotFound("template.get_user")
	}
	return copyTemplate(t), nil
}

func (r *MemTemplateRepository) Create(ctx context.Context, t *model.Template) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.tick()
	t.ID = uuid.NewString()
	t.Kind = model.TemplateUser
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.user[t.ID] = copyTemplate(t)
	return nil
}

func (r *MemTemplateRepository) Update(ctx context.Context, t *model.Template) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.user[t.ID]
	if !ok {
		return apperr.NotFound("template.update")
	}
	t.UpdatedAt = r.s.tick()
	t.CreatedAt = stored.CreatedAt
	r.s.user[t.ID] = copyTemplate(t)
	return nil
}

// Delete removes the template and clears references to it, like the
// ON DELETE SET NULL foreign key.
func (r *MemTemplateRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.user[id]; !ok {
		return apperr.NotFound("template.delete")
	}
	delete(r.s.user, id)
	for _, e := range r.s.estimates {
		if e.TemplateID != nil && *e.TemplateID == id {
			e.TemplateID = nil
		}
	}
	return nil
}
