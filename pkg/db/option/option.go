package option

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption narrows a gorm statement.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

func Where(query any, args ...any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// OrderBy orders by a column. Column names are quoted by gorm.
func OrderBy(column string, desc bool) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	})
}

func Limit(limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func Offset(offset int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return db
		}
		return db.Offset(offset)
	})
}

// Page selects rows [offset, offset+limit).
func Page(offset, limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return Limit(limit).Apply(Offset(offset).Apply(db))
	})
}

func Distinct(columns ...string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		args := make([]any, 0, len(columns))
		for _, c := range columns {
			args = append(args, c)
		}
		return db.Distinct(args...)
	})
}
