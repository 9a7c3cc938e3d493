package record

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/relations/internal/orm/relations"
	"github.com/conduit-lang/relations/internal/orm/schema"
)

type fixture struct {
	catalog *schema.Catalog
	foreign *Definition
	linking *Definition
	account *Definition
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := schema.NewCatalog(nil)

	foreignModel := schema.NewModel("ForeignModel", "wide").
		Partition("organization", schema.TypeText).
		Clustering("start_date", schema.TypeTimestamp).
		Clustering("key", schema.TypeUUID).
		Column("info", schema.TypeText)
	accountModel := schema.NewModel("Account", "sql").
		Partition("id", schema.TypeUUID).
		Column("email", schema.TypeText)
	linkingModel := schema.NewModel("Linking", "wide").
		Partition("key", schema.TypeUUID)

	wide := catalog.Engine("wide")
	sqlEngine := catalog.Engine("sql")

	foreignKey, err := relations.NewComposite("foreign_key", relations.TargetName(wide, "ForeignModel"), relations.Options{})
	require.NoError(t, err)
	accountRef, err := relations.NewCrossStore("account", relations.TargetName(sqlEngine, "Account"), relations.Options{})
	require.NoError(t, err)

	// Linking is declared before ForeignModel and Account are registered
	linking, err := NewDefinition(linkingModel, foreignKey, accountRef)
	require.NoError(t, err)

	require.NoError(t, catalog.Register(foreignModel))
	require.NoError(t, catalog.Register(accountModel))
	require.NoError(t, catalog.Register(linkingModel))

	foreign, err := NewDefinition(foreignModel)
	require.NoError(t, err)
	account, err := NewDefinition(accountModel)
	require.NoError(t, err)

	return &fixture{catalog: catalog, foreign: foreign, linking: linking, account: account}
}

func TestRecordRelations(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 123456789, time.UTC)

	foreign := New(f.foreign).
		MustSet("organization", "Dummy organization").
		MustSet("start_date", now).
		MustSet("key", uuid.New()).
		MustSet("info", "hello")

	account := New(f.account).MustSet("id", uuid.New())

	t.Run("initial value is null", func(t *testing.T) {
		r := New(f.linking).MustSet("key", uuid.New())
		assert.True(t, r.Relation("foreign_key").IsNull())

		row, err := r.Encode()
		require.NoError(t, err)
		assert.Equal(t, 0, row["foreign_key"].(schema.KeyMapping).Len())
		assert.Nil(t, row["account"])
	})

	t.Run("assigning an instance stores its key", func(t *testing.T) {
		r := New(f.linking).MustSet("key", uuid.New())
		require.NoError(t, r.Set("foreign_key", foreign))
		require.NoError(t, r.Set("account", account))

		fk := r.Relation("foreign_key")
		require.Equal(t, relations.KindKey, fk.Kind())
		assert.Equal(t, []string{"organization", "start_date", "key"}, fk.Key().Names())

		row, err := r.Encode()
		require.NoError(t, err)
		stored := row["foreign_key"].(schema.KeyMapping)
		startDate, _ := stored.Get("start_date")
		assert.Equal(t, "1717243200123", startDate)

		accountID, _ := account.Get("id")
		assert.Equal(t, accountID.(uuid.UUID).String(), row["account"])
	})

	t.Run("mutating a returned key leaves the record alone", func(t *testing.T) {
		r := New(f.linking).MustSet("key", uuid.New())
		require.NoError(t, r.Set("foreign_key", foreign))

		fk := r.Relation("foreign_key").Key()
		fk.Set("organization", "Other organization")
		fk.Set("extra", 1)

		stored := r.Relation("foreign_key").Key()
		org, _ := stored.Get("organization")
		assert.Equal(t, "Dummy organization", org)
		assert.Equal(t, []string{"organization", "start_date", "key"}, stored.Names())
	})

	t.Run("encode decode round trip", func(t *testing.T) {
		r := New(f.linking).MustSet("key", uuid.New())
		require.NoError(t, r.Set("foreign_key", foreign))
		require.NoError(t, r.Set("account", account))

		row, err := r.Encode()
		require.NoError(t, err)

		loaded, err := Decode(f.linking, row)
		require.NoError(t, err)
		assert.True(t, r.Equal(loaded), "expected %s, got %s", r, loaded)

		fk := loaded.Relation("foreign_key").Key()
		start, _ := fk.Get("start_date")
		assert.True(t, schema.TruncateMillis(now).Equal(start.(time.Time)))
	})

	t.Run("own key", func(t *testing.T) {
		km, err := foreign.Key()
		require.NoError(t, err)
		assert.Equal(t, []string{"organization", "start_date", "key"}, km.Names())

		_, err = New(f.foreign).MustSet("organization", "x").Key()
		assert.ErrorIs(t, err, schema.ErrIncompleteKey)
	})

	t.Run("key value only exposes key attributes", func(t *testing.T) {
		_, ok := foreign.KeyValue("info")
		assert.False(t, ok)
		_, ok = foreign.KeyValue("organization")
		assert.True(t, ok)
	})

	t.Run("validation failures are field errors", func(t *testing.T) {
		r := New(f.linking)

		err := r.Set("foreign_key", map[string]interface{}{"organization": "x"})
		require.Error(t, err)
		assert.True(t, IsFieldError(err))
		assert.ErrorIs(t, err, schema.ErrIncompleteKey)

		err = r.Set("account", foreign)
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)

		err = r.Set("key", "not a uuid")
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)

		err = r.Set("nope", 1)
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("decode failures are field errors", func(t *testing.T) {
		_, err := Decode(f.linking, map[string]interface{}{
			"key":         uuid.New().String(),
			"foreign_key": map[string]string{"organization": "x"},
		})
		var fe *FieldError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, PhaseDecode, fe.Phase)
		assert.Equal(t, "foreign_key", fe.Field)
		assert.ErrorIs(t, err, schema.ErrIncompleteKey)
	})

	t.Run("clearing an attribute", func(t *testing.T) {
		r := New(f.foreign).MustSet("info", "x")
		require.NoError(t, r.Set("info", nil))
		_, ok := r.Get("info")
		assert.False(t, ok)
	})
}

func TestDefinition(t *testing.T) {
	catalog := schema.NewCatalog(nil)
	wide := catalog.Engine("wide")
	sqlEngine := catalog.Engine("sql")
	owner := schema.NewModel("Owner", "wide").Partition("id", schema.TypeUUID)

	t.Run("same store relation must stay in engine", func(t *testing.T) {
		col, err := relations.NewScalar("user", relations.TargetName(sqlEngine, "User"), relations.Options{})
		require.NoError(t, err)

		_, err = NewDefinition(owner, col)
		assert.ErrorIs(t, err, ErrWrongEngine)
	})

	t.Run("cross store relation must leave engine", func(t *testing.T) {
		col, err := relations.NewCrossStore("user", relations.TargetName(wide, "User"), relations.Options{})
		require.NoError(t, err)

		_, err = NewDefinition(owner, col)
		assert.ErrorIs(t, err, ErrWrongEngine)
	})

	t.Run("column names are unique", func(t *testing.T) {
		a, err := relations.NewScalar("parent", relations.TargetName(wide, "Owner"), relations.Options{})
		require.NoError(t, err)
		b, err := relations.NewScalar("parent", relations.TargetName(wide, "Owner"), relations.Options{})
		require.NoError(t, err)
		shadow, err := relations.NewScalar("id", relations.TargetName(wide, "Owner"), relations.Options{})
		require.NoError(t, err)

		_, err = NewDefinition(owner, a, b)
		assert.ErrorIs(t, err, ErrDuplicateColumn)

		_, err = NewDefinition(owner, shadow)
		assert.ErrorIs(t, err, ErrDuplicateColumn)
	})

	t.Run("storage columns", func(t *testing.T) {
		col, err := relations.NewScalar("parent", relations.TargetName(wide, "Owner"), relations.Options{})
		require.NoError(t, err)

		def, err := NewDefinition(owner, col)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "parent"}, def.StorageColumns())
		assert.Len(t, def.Columns(), 1)
	})
}
