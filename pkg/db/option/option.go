// Package option provides composable gorm query options used by the
// generic repository.
package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Operator string

const (
	EQ   Operator = "="
	GT   Operator = ">"
	GTE  Operator = ">="
	LT   Operator = "<"
	LTE  Operator = "<="
	LIKE Operator = "LIKE"
)

// QueryOption mutates a gorm statement before it is executed.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// Condition expresses a single field comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func ApplyOperator(cond Condition) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		switch cond.Operator {
		case LIKE:
			return db.Where(fmt.Sprintf("%s LIKE ?", field), cond.Value)
		case EQ, GT, GTE, LT, LTE:
			return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
		default:
			return db
		}
	})
}

// QuerySortBy sorts by a requested column restricted to an allow-list.
type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" {
			field = "created_at"
		}
		if len(sort.Allow) > 0 && !sort.Allow[field] {
			field = "created_at"
		}
		direction := "ASC"
		if sort.Desc {
			direction = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", field, direction))
	})
}

func WithLimit(limit int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func WithOffset(offset int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return db
		}
		return db.Offset(offset)
	})
}

// WithLockForUpdate takes a row lock for read-modify-write flows.
// SQLite serialises writers on its own, so the clause is postgres-only.
func WithLockForUpdate() QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if db.Dialector.Name() != "postgres" {
			return db
		}
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	})
}
