// Package document defines the record every search backend stores: a JSON
// body belonging to one module.
package document

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/theplant/filtergroup/value"
)

type Document struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Module    string         `gorm:"index:idx_documents_module_created_at,priority:1;not null" json:"module"`
	Body      datatypes.JSON `gorm:"type:jsonb;not null" json:"body"`
	CreatedAt time.Time      `gorm:"index:idx_documents_module_created_at,priority:2;not null" json:"createdAt"`
}

// StoredTime is t at the precision of a PostgreSQL timestamp.
func StoredTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// BeforeCreate drops the precision the documents table cannot keep.
func (d *Document) BeforeCreate(*gorm.DB) error {
	d.CreatedAt = StoredTime(d.CreatedAt)
	return nil
}

// New builds a document of module from any value convertible by value.Of.
// Bodies must be JSON objects.
func New(module string, body any) (*Document, error) {
	if module == "" {
		return nil, errors.New("module is required")
	}
	v, err := value.Of(body)
	if err != nil {
		return nil, errors.Wrap(err, "convert body")
	}
	if v.Kind() != value.Object {
		return nil, errors.Errorf("body must be an object, got %s", v.Kind())
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:        uuid.New(),
		Module:    module,
		Body:      datatypes.JSON(data),
		CreatedAt: StoredTime(time.Now()),
	}, nil
}

// Record parses the body for evaluation.
func (d *Document) Record() (value.Value, error) {
	if len(d.Body) == 0 {
		return value.ObjectValue(nil), nil
	}
	v, err := value.Parse([]byte(d.Body))
	if err != nil {
		return value.Value{}, errors.Wrapf(err, "parse body of document %s", d.ID)
	}
	return v, nil
}

// Key is the position of a document in search order.
type Key struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        uuid.UUID `json:"id"`
}

func (d *Document) Key() Key {
	return Key{CreatedAt: d.CreatedAt, ID: d.ID}
}

// CompareKeys orders keys by creation time, then by id.
func CompareKeys(a, b Key) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}

// Compare orders documents by creation time, then by id. Every backend
// returns search results in this order.
func Compare(a, b *Document) int {
	return CompareKeys(a.Key(), b.Key())
}
