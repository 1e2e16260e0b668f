package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/meseboard/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (r *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var result []*T
	stmt := r.buildQuery(ctx, query, opts...)
	err := stmt.Find(&result).Error
	return result, err
}

func (r *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var result T
	tx := r.buildQuery(ctx, query, opts...).Limit(1).Find(&result)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, nil
	}
	return &result, nil
}

func (r *store[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	var count int64
	err := r.buildQuery(ctx, query, opts...).Model(new(T)).Count(&count).Error
	return count, err
}

func (r *store[T]) Upsert(ctx context.Context, resources []*T, conflictColumns, updateColumns []string) error {
	if len(resources) == 0 {
		return nil
	}

	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, name := range conflictColumns {
		columns = append(columns, clause.Column{Name: name})
	}

	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) == 0 {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	}

	return r.db.WithContext(ctx).Clauses(onConflict).Create(resources).Error
}

func (r *store[T]) DeleteWhere(ctx context.Context, opts ...option.QueryOption) (int64, error) {
	if len(opts) == 0 {
		return 0, errors.New("refusing to delete without a filter")
	}
	stmt := r.db.WithContext(ctx)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	var dummy T
	result := stmt.Delete(&dummy)
	return result.RowsAffected, result.Error
}

func (r *store[T]) Pluck(ctx context.Context, column string, dest any, opts ...option.QueryOption) error {
	return r.buildQuery(ctx, nil, opts...).Model(new(T)).Pluck(column, dest).Error
}

func (s *store[T]) buildQuery(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	db := s.db.WithContext(ctx)
	if filter != nil {
		db = db.Where(filter)
	}

	for _, opt := range opts {
		db = opt.Apply(db)
	}

	return db
}
