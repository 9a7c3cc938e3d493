package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/relations/internal/orm/record"
	"github.com/conduit-lang/relations/internal/orm/relations"
	"github.com/conduit-lang/relations/internal/orm/schema"
	"github.com/conduit-lang/relations/internal/orm/store"
	"github.com/conduit-lang/relations/internal/orm/store/memory"
)

func TestFollow(t *testing.T) {
	ctx := context.Background()
	catalog := schema.NewCatalog(nil)

	dummyModel := schema.NewModel("Dummy", "wide").
		Partition("organization", schema.TypeText).
		Clustering("start_date", schema.TypeTimestamp).
		Clustering("key", schema.TypeUUID)
	userModel := schema.NewModel("User", "sql").
		Partition("id", schema.TypeUUID).
		Column("email", schema.TypeText)
	require.NoError(t, catalog.Register(dummyModel))
	require.NoError(t, catalog.Register(userModel))

	composite, err := relations.NewComposite("dummy", relations.TargetName(catalog.Engine("wide"), "Dummy"), relations.Options{})
	require.NoError(t, err)
	cross, err := relations.NewCrossStore("user", relations.TargetName(catalog.Engine("sql"), "User"), relations.Options{})
	require.NoError(t, err)

	wide := memory.New("wide", nil, nil)
	sqlStore := memory.New("sql", nil, nil)
	stores := store.NewSet(wide, sqlStore)

	t0 := time.Date(2024, 3, 5, 10, 11, 12, 345000000, time.UTC)
	dummy := record.ForModel(dummyModel).
		MustSet("organization", "Org1").
		MustSet("start_date", t0).
		MustSet("key", uuid.New())
	user := record.ForModel(userModel).
		MustSet("id", uuid.New()).
		MustSet("email", "a@example.com")
	require.NoError(t, wide.Put(ctx, dummy))
	require.NoError(t, sqlStore.Put(ctx, user))

	t.Run("composite stored value", func(t *testing.T) {
		stored, err := composite.ToStorage(relations.FromInstance(dummy))
		require.NoError(t, err)
		runtime, err := composite.ToRuntime(stored)
		require.NoError(t, err)

		got, err := store.Follow(ctx, stores, composite, runtime)
		require.NoError(t, err)
		assert.True(t, dummy.Equal(got))
	})

	t.Run("cross store stored value", func(t *testing.T) {
		stored, err := cross.ToStorage(relations.FromInstance(user))
		require.NoError(t, err)
		runtime, err := cross.ToRuntime(stored)
		require.NoError(t, err)

		got, err := store.Follow(ctx, stores, cross, runtime)
		require.NoError(t, err)
		assert.True(t, user.Equal(got))
	})

	t.Run("null value", func(t *testing.T) {
		_, err := store.Follow(ctx, stores, cross, relations.Null())
		assert.ErrorIs(t, err, relations.ErrNullValue)
	})

	t.Run("missing store", func(t *testing.T) {
		_, err := store.Follow(ctx, store.NewSet(wide), cross, relations.FromInstance(user))
		assert.ErrorIs(t, err, store.ErrUnknownEngine)
	})
}

func TestCheckKey(t *testing.T) {
	model := schema.NewModel("User", "sql").Partition("id", schema.TypeUUID)

	_, _, err := store.CheckKey(model, schema.NewKeyMapping(
		schema.KeyValue{Name: "id", Value: uuid.New()},
		schema.KeyValue{Name: "email", Value: "x"},
	))
	assert.ErrorIs(t, err, schema.ErrTypeMismatch)

	_, _, err = store.CheckKey(model, schema.NewKeyMapping(schema.KeyValue{Name: "id", Value: "abc"}))
	assert.ErrorIs(t, err, schema.ErrTypeMismatch)

	kd, key, err := store.CheckKey(model, schema.NewKeyMapping(schema.KeyValue{Name: "id", Value: uuid.Nil}))
	require.NoError(t, err)
	parts, err := store.EncodeKey(kd, key)
	require.NoError(t, err)
	assert.Equal(t, []string{uuid.Nil.String()}, parts)
}
