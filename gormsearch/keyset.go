package gormsearch

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm/clause"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/cursor"
	"github.com/theplant/filtergroup/document"
	"github.com/theplant/filtergroup/filter"
)

var (
	createdAtColumn = clause.Column{Table: clause.CurrentTable, Name: "created_at"}
	idColumn        = clause.Column{Table: clause.CurrentTable, Name: "id"}
)

func orderBy(desc bool) clause.OrderBy {
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: createdAtColumn, Desc: desc},
		{Column: idColumn, Desc: desc},
	}}
}

// keysetExpr selects the documents after key, or before it when reverse is
// set:
//
//	created_at > $1 OR (created_at = $1 AND id > $2)
func keysetExpr(key document.Key, reverse bool) clause.Expression {
	cmp := func(column clause.Column, v any) clause.Expression {
		if reverse {
			return clause.Lt{Column: column, Value: v}
		}
		return clause.Gt{Column: column, Value: v}
	}
	return clause.Or(
		clause.And(cmp(createdAtColumn, key.CreatedAt)),
		clause.And(
			clause.Eq{Column: createdAtColumn, Value: key.CreatedAt},
			cmp(idColumn, key.ID),
		),
	)
}

// KeysetFinder reads the documents of one module by key.
func (s *Store) KeysetFinder(module string) cursor.KeysetFinder[*document.Document, document.Key] {
	return &keysetFinder{finder: finder{store: s, module: module}}
}

// KeysetSearcher pages through the documents of module matching a filter
// with cursors that survive inserts.
func (s *Store) KeysetSearcher(module string, hooks ...func(next filtergroup.Searcher[*document.Document]) filtergroup.Searcher[*document.Document]) filtergroup.Searcher[*document.Document] {
	return filtergroup.New(cursor.Base64(cursor.NewKeysetAdapter(s.KeysetFinder(module), (*document.Document).Key)), hooks...)
}

type keysetFinder struct {
	finder
}

func (f *keysetFinder) Find(ctx context.Context, g *filter.FilterGroup, after, before *document.Key, limit int, fromEnd bool) ([]*document.Document, error) {
	docs := []*document.Document{}
	if limit <= 0 {
		return docs, nil
	}

	db, err := f.store.query(ctx, f.module, g)
	if err != nil {
		return nil, err
	}
	if after != nil {
		db = db.Where(keysetExpr(*after, false))
	}
	if before != nil {
		db = db.Where(keysetExpr(*before, true))
	}

	if err := db.Clauses(orderBy(fromEnd)).Limit(limit).Find(&docs).Error; err != nil {
		return nil, errors.Wrap(err, "find")
	}
	if fromEnd {
		lo.Reverse(docs)
	}
	return docs, nil
}
