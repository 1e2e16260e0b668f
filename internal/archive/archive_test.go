package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/meseboard/internal/record/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	got := ObjectPath(domain.KindPersonNode, "人员节点 (11月).csv", now)

	assert.True(t, strings.HasPrefix(got, "person_nodes/2025-11/"))
	assert.True(t, strings.HasSuffix(got, "______11__.csv"), got)
	assert.Contains(t, got, "1762164000000_")
}

func TestObjectPathUnknownKindUsesMisc(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, strings.HasPrefix(ObjectPath(domain.Kind("other"), "a.csv", now), "misc/2025-01/"))
}

func TestMonthlyPath(t *testing.T) {
	now := time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "overview/2025-02.csv", MonthlyPath(domain.KindOverview, now))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "a_b-c.csv", SanitizeName("a b-c.csv"))
	assert.Equal(t, "___.csv", SanitizeName("台账表.csv"))
}

func TestDisabledStore(t *testing.T) {
	err := Disabled().Put(context.Background(), "x", nil, "")
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("mese-data")
	require.NoError(t, store.Put(context.Background(), "overview/a.csv", []byte("x"), "text/csv"))

	body, ct, ok := store.Object("overview/a.csv")
	require.True(t, ok)
	assert.Equal(t, "x", string(body))
	assert.Equal(t, "text/csv", ct)

	store.SetBucketMissing(true)
	assert.ErrorIs(t, store.Put(context.Background(), "b", nil, ""), ErrBucketNotFound)
	require.NoError(t, store.EnsureBucket(context.Background()))
	assert.NoError(t, store.Put(context.Background(), "b", nil, ""))
}

func TestClientOptions(t *testing.T) {
	assert.Len(t, ClientOptions(GCSConfig{}), 1)
	assert.Len(t, ClientOptions(GCSConfig{Credentials: `{"type":"service_account"}`}), 2)
	assert.Len(t, ClientOptions(GCSConfig{Credentials: "/tmp/key.json"}), 2)

	assert.Len(t, ClientOptions(GCSConfig{Endpoint: "localhost:4443"}), 3)
}
