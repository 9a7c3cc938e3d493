package sqlstore

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
)

func TestSQLiteCompositeRoundTrip(t *testing.T) {
	ctx := context.Background()
	catalog := schema.NewCatalog(nil)
	reg := catalog.Engine("lite")

	dummy := schema.NewModel("Dummy", "lite").
		Partition("organization", schema.TypeText).
		Clustering("start_date", schema.TypeTimestamp).
		Clustering("key", schema.TypeUUID).
		Column("info", schema.TypeText)
	linking := schema.NewModel("Linking", "lite").
		Partition("key", schema.TypeUUID)
	require.NoError(t, catalog.Register(dummy))
	require.NoError(t, catalog.Register(linking))

	col, err := relations.NewComposite("dummy", relations.TargetName(reg, "Dummy"), relations.Options{})
	require.NoError(t, err)
	dummyDef, err := record.NewDefinition(dummy)
	require.NoError(t, err)
	linkDef, err := record.NewDefinition(linking, col)
	require.NoError(t, err)

	s, err := Open("lite", SQLite, ":memory:", store.Definitions{"Dummy": dummyDef, "Linking": linkDef}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.CreateTable(ctx, dummyDef))
	require.NoError(t, s.CreateTable(ctx, linkDef))
	require.NoError(t, s.CreateTable(ctx, dummyDef), "create is idempotent")

	d := record.New(dummyDef).
		MustSet("organization", "Org1").
		MustSet("start_date", time.Date(2024, 3, 5, 10, 11, 12, 345000000, time.UTC)).
		MustSet("key", uuid.New()).
		MustSet("info", "hello")
	require.NoError(t, s.Put(ctx, d))

	link := record.New(linkDef).MustSet("key", uuid.New()).MustSet("dummy", d)
	require.NoError(t, s.Put(ctx, link))

	linkKey, err := link.Key()
	require.NoError(t, err)
	loaded, err := s.Get(ctx, linking, linkKey)
	require.NoError(t, err)
	require.Equal(t, relations.KindKey, loaded.Relation("dummy").Kind())

	got, err := store.Follow(ctx, store.NewSet(s), col, loaded.Relation("dummy"))
	require.NoError(t, err)
	assert.True(t, d.Equal(got), "want %s, got %s", d, got)
}
