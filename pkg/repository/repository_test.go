package repository

import (
	"context"
	"testing"

	"github.com/smallbiznis/meseboard/pkg/db"
	"github.com/smallbiznis/meseboard/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID    int64  `gorm:"primaryKey"`
	Code  string `gorm:"uniqueIndex:ux_widget_code"`
	Category string
	Score int
}

func newWidgetStore(t *testing.T) Repository[widget] {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return ProvideStore[widget](conn)
}

func TestUpsertUpdatesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := newWidgetStore(t)

	require.NoError(t, store.Upsert(ctx, []*widget{
		{ID: 1, Code: "a", Category: "g1", Score: 1},
		{ID: 2, Code: "b", Category: "g1", Score: 2},
	}, []string{"code"}, []string{"score"}))

	require.NoError(t, store.Upsert(ctx, []*widget{
		{ID: 3, Code: "a", Category: "ignored", Score: 10},
	}, []string{"code"}, []string{"score"}))

	count, err := store.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	got, err := store.FindOne(ctx, &widget{Code: "a"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "g1", got.Category)
	assert.Equal(t, 10, got.Score)
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	store := newWidgetStore(t)
	assert.NoError(t, store.Upsert(context.Background(), nil, []string{"code"}, nil))
}

func TestFindWithOptionsAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newWidgetStore(t)
	require.NoError(t, store.Upsert(ctx, []*widget{
		{ID: 1, Code: "a", Category: "x", Score: 3},
		{ID: 2, Code: "b", Category: "x", Score: 1},
		{ID: 3, Code: "c", Category: "y", Score: 2},
	}, []string{"code"}, nil))

	rows, err := store.Find(ctx, &widget{Category: "x"}, option.OrderBy("score", false))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].Code)

	page, err := store.Find(ctx, nil, option.OrderBy("id", false), option.Page(1, 1))
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Code)

	var categories []string
	require.NoError(t, store.Pluck(ctx, "category", &categories, option.Distinct("category"), option.OrderBy("category", true)))
	assert.Equal(t, []string{"y", "x"}, categories)

	deleted, err := store.DeleteWhere(ctx, option.Where("category = ?", "x"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	missing, err := store.FindOne(ctx, &widget{Code: "a"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = store.DeleteWhere(ctx)
	assert.Error(t, err)
}
