// Package schema caches the dynamic, per-form field definitions that query
// validation runs against. Field sets are user-created at runtime, so they
// are modeled as lookup structures rather than compile-time types.
package schema

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/formlab/formsql/internal/errors"
	"github.com/formlab/formsql/internal/logging"
)

// Field describes one user-defined field of a form.
type Field struct {
	ID    string
	Label string
	Type  string
}

// FormSchema is the set of known fields for one form.
type FormSchema struct {
	FormID string
	Name   string
	Fields map[string]Field
}

// Source loads form schemas from the owning store. Implementations return an
// ErrTypeNotFound error when the form does not exist.
type Source interface {
	GetFormSchema(ctx context.Context, formID string) (*FormSchema, error)
}

// Cache lazily loads form schemas on first use and keeps them until
// explicitly invalidated. Readers tolerate momentary staleness: a schema
// read during a concurrent field mutation is corrected by the next
// invalidation. Absence is never cached, so an unknown form is re-checked on
// every query.
type Cache struct {
	source Source
	forms  *lru.Cache[string, *FormSchema]
}

// NewCache creates a schema cache holding at most size form schemas.
func NewCache(source Source, size int) (*Cache, error) {
	forms, err := lru.New[string, *FormSchema](size)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to create schema cache")
	}

	return &Cache{source: source, forms: forms}, nil
}

// Snapshot resolves the given forms into a point-in-time lookup. Forms the
// source does not know are simply absent from the snapshot; a load failure
// other than not-found is returned as a database error.
func (c *Cache) Snapshot(ctx context.Context, formIDs ...string) (*Snapshot, error) {
	snap := &Snapshot{forms: make(map[string]*FormSchema, len(formIDs))}

	for _, formID := range formIDs {
		if cached, ok := c.forms.Get(formID); ok {
			snap.forms[formID] = cached
			continue
		}

		loaded, err := c.source.GetFormSchema(ctx, formID)
		if err != nil {
			if errors.IsType(err, errors.ErrTypeNotFound) {
				continue
			}

			return nil, errors.Wrapf(err, errors.ErrTypeDatabase, "failed to load schema for form %s", formID)
		}

		c.forms.Add(formID, loaded)
		snap.forms[formID] = loaded

		logging.Debugf("schema cache: loaded form %s (%d fields)", formID, len(loaded.Fields))
	}

	return snap, nil
}

// Invalidate drops one form's cached schema. Called whenever the owning
// store mutates that form's field definitions. Invalidating an uncached or
// already-invalidated form is a no-op, so repeated invalidation is
// idempotent.
func (c *Cache) Invalidate(formID string) {
	c.forms.Remove(formID)
}

// InvalidateAll drops every cached schema.
func (c *Cache) InvalidateAll() {
	c.forms.Purge()
}

// Len returns the number of cached form schemas.
func (c *Cache) Len() int {
	return c.forms.Len()
}

// Snapshot is an immutable view of the resolved forms. It satisfies the
// validator's schema lookup without further I/O.
type Snapshot struct {
	forms map[string]*FormSchema
}

// HasForm reports whether the form was known at snapshot time.
func (s *Snapshot) HasForm(formID string) bool {
	_, ok := s.forms[formID]
	return ok
}

// HasField reports whether the form has the given field.
func (s *Snapshot) HasField(formID, fieldID string) bool {
	form, ok := s.forms[formID]
	if !ok {
		return false
	}

	_, ok = form.Fields[fieldID]

	return ok
}

// FieldLabel returns the display label for a field, or the field identifier
// itself when no label is known.
func (s *Snapshot) FieldLabel(formID, fieldID string) string {
	if form, ok := s.forms[formID]; ok {
		if field, ok := form.Fields[fieldID]; ok && field.Label != "" {
			return field.Label
		}
	}

	return fieldID
}
