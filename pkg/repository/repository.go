package repository

import (
	"context"

	"github.com/smallbiznis/meseboard/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm-backed store for one table.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
	// Upsert inserts resources, updating updateColumns when a row with the
	// same conflictColumns already exists.
	Upsert(ctx context.Context, resources []*T, conflictColumns, updateColumns []string) error
	DeleteWhere(ctx context.Context, opts ...option.QueryOption) (int64, error)
	Pluck(ctx context.Context, column string, dest any, opts ...option.QueryOption) error
}
