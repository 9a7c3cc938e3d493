package relations

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/relations/internal/orm/schema"
)

// fakeInstance is a minimal live record for codec tests
type fakeInstance struct {
	model  string
	engine string
	values map[string]interface{}
}

func (f *fakeInstance) ModelName() string { return f.model }
func (f *fakeInstance) Engine() string    { return f.engine }
func (f *fakeInstance) KeyValue(name string) (interface{}, bool) {
	v, ok := f.values[name]
	return v, ok
}

var (
	t0 = time.Date(2024, 3, 5, 10, 11, 12, 345000000, time.UTC)
	u0 = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
)

func dummyModel() *schema.Model {
	return schema.NewModel("Dummy", "wide").
		Partition("organization", schema.TypeText).
		Clustering("start_date", schema.TypeTimestamp).
		Clustering("key", schema.TypeUUID).
		Column("info", schema.TypeText)
}

func userModel(engine string) *schema.Model {
	return schema.NewModel("User", engine).
		Partition("id", schema.TypeUUID).
		Column("email", schema.TypeText)
}

func dummyInstance() *fakeInstance {
	return &fakeInstance{
		model:  "Dummy",
		engine: "wide",
		values: map[string]interface{}{
			"organization": "Org1",
			"start_date":   t0,
			"key":          u0,
			"info":         "extra",
		},
	}
}

func newWideRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry("wide")
	require.NoError(t, reg.Register(dummyModel()))
	require.NoError(t, reg.Register(userModel("wide")))
	return reg
}

func TestCompositeCodec(t *testing.T) {
	t.Run("dummy round trip", func(t *testing.T) {
		col, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		stored, err := col.ToStorage(FromInstance(dummyInstance()))
		require.NoError(t, err)

		km, ok := stored.(schema.KeyMapping)
		require.True(t, ok, "expected schema.KeyMapping, got %T", stored)
		assert.Equal(t, []string{"organization", "start_date", "key"}, km.Names())
		assert.Equal(t, map[string]interface{}{
			"organization": "Org1",
			"start_date":   "1709633472345",
			"key":          u0.String(),
		}, km.Map())

		back, err := col.Key(stored)
		require.NoError(t, err)
		expected := schema.NewKeyMapping(
			schema.KeyValue{Name: "organization", Value: "Org1"},
			schema.KeyValue{Name: "start_date", Value: t0},
			schema.KeyValue{Name: "key", Value: u0},
		)
		assert.True(t, expected.Equal(back), "expected %s, got %s", expected, back)

		_, isTime := mustGet(t, back, "start_date").(time.Time)
		assert.True(t, isTime)
		_, isUUID := mustGet(t, back, "key").(uuid.UUID)
		assert.True(t, isUUID)
	})

	t.Run("input order is irrelevant", func(t *testing.T) {
		col, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		a := schema.NewKeyMapping(
			schema.KeyValue{Name: "key", Value: u0},
			schema.KeyValue{Name: "organization", Value: "Org1"},
			schema.KeyValue{Name: "start_date", Value: t0},
		)
		b := schema.NewKeyMapping(
			schema.KeyValue{Name: "start_date", Value: t0},
			schema.KeyValue{Name: "key", Value: u0},
			schema.KeyValue{Name: "organization", Value: "Org1"},
		)

		sa, err := col.ToStorage(FromKey(a))
		require.NoError(t, err)
		sb, err := col.ToStorage(FromKey(b))
		require.NoError(t, err)

		assert.True(t, sa.(schema.KeyMapping).Equal(sb.(schema.KeyMapping)))
	})

	t.Run("instance and mapping agree", func(t *testing.T) {
		col, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		fromInstance, err := col.Validate(FromInstance(dummyInstance()))
		require.NoError(t, err)
		fromMap, err := col.Validate(Of(map[string]interface{}{
			"organization": "Org1",
			"start_date":   t0,
			"key":          u0,
		}))
		require.NoError(t, err)

		assert.Equal(t, KindKey, fromInstance.Kind())
		assert.True(t, fromInstance.Equal(fromMap))
	})

	t.Run("missing attribute", func(t *testing.T) {
		col, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		partial := schema.NewKeyMapping(
			schema.KeyValue{Name: "organization", Value: "Org1"},
			schema.KeyValue{Name: "key", Value: u0},
		)

		_, err = col.Validate(FromKey(partial))
		var incomplete *schema.IncompleteKeyError
		require.ErrorAs(t, err, &incomplete)
		assert.Equal(t, []string{"start_date"}, incomplete.Missing)

		_, err = col.ToRuntime(map[string]string{"organization": "Org1", "key": u0.String()})
		assert.True(t, schema.IsIncompleteKey(err))
	})

	t.Run("extra attribute", func(t *testing.T) {
		col, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		_, err = col.Validate(Of(map[string]interface{}{
			"organization": "Org1",
			"start_date":   t0,
			"key":          u0,
			"info":         "not a key",
		}))
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)
	})

	t.Run("wrong component type", func(t *testing.T) {
		col, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		_, err = col.Validate(Of(map[string]interface{}{
			"organization": "Org1",
			"start_date":   "yesterday",
			"key":          u0,
		}))
		var mismatch *schema.TypeMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "start_date", mismatch.Attribute)
	})

	t.Run("instance lacking a key attribute", func(t *testing.T) {
		col, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		inst := dummyInstance()
		delete(inst.values, "key")

		_, err = col.Validate(FromInstance(inst))
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)
	})

	t.Run("scalar is not a one element key", func(t *testing.T) {
		col, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		_, err = col.Validate(FromScalar(u0))
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)
	})

	t.Run("null values", func(t *testing.T) {
		col, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		stored, err := col.ToStorage(Null())
		require.NoError(t, err)
		assert.Equal(t, 0, stored.(schema.KeyMapping).Len())

		v, err := col.ToRuntime(nil)
		require.NoError(t, err)
		assert.True(t, v.IsNull())

		v, err = col.ToRuntime(map[string]string{})
		require.NoError(t, err)
		assert.True(t, v.IsNull())

		required, err := NewComposite("owner", TargetName(newWideRegistry(t), "Dummy"), Options{Required: true})
		require.NoError(t, err)
		_, err = required.Validate(Null())
		assert.ErrorIs(t, err, ErrNullValue)
	})

	t.Run("json stored form", func(t *testing.T) {
		col, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		stored, err := col.ToStorage(FromInstance(dummyInstance()))
		require.NoError(t, err)
		text, err := stored.(schema.KeyMapping).Value()
		require.NoError(t, err)

		back, err := col.Key(text)
		require.NoError(t, err)
		assert.Equal(t, "Org1", mustGet(t, back, "organization"))
		assert.True(t, t0.Equal(mustGet(t, back, "start_date").(time.Time)))

		_, err = col.ToRuntime("{not json")
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)
	})

	t.Run("indexed composite is refused", func(t *testing.T) {
		_, err := NewComposite("foreign_key", TargetName(newWideRegistry(t), "Dummy"), Options{Indexed: true})
		assert.ErrorIs(t, err, ErrIndexedComposite)
	})
}

func TestScalarCodec(t *testing.T) {
	t.Run("round trip through instance", func(t *testing.T) {
		col, err := NewScalar("author", TargetName(newWideRegistry(t), "User"), Options{})
		require.NoError(t, err)
		id := uuid.New()

		inst := &fakeInstance{model: "User", engine: "wide", values: map[string]interface{}{"id": id}}
		stored, err := col.ToStorage(FromInstance(inst))
		require.NoError(t, err)
		assert.Equal(t, id.String(), stored)

		back, err := col.Scalar(stored)
		require.NoError(t, err)
		assert.Equal(t, id, back)

		key, err := col.KeyFor(FromScalar(back))
		require.NoError(t, err)
		assert.Equal(t, []string{"id"}, key.Names())
	})

	t.Run("raw scalar", func(t *testing.T) {
		col, err := NewScalar("author", TargetName(newWideRegistry(t), "User"), Options{})
		require.NoError(t, err)

		v, err := col.Validate(FromScalar(u0))
		require.NoError(t, err)
		assert.Equal(t, u0, v.Scalar())

		_, err = col.Validate(FromScalar(u0.String()))
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)
	})

	t.Run("key mapping is rejected", func(t *testing.T) {
		col, err := NewScalar("author", TargetName(newWideRegistry(t), "User"), Options{})
		require.NoError(t, err)

		_, err = col.Validate(FromKey(schema.NewKeyMapping(schema.KeyValue{Name: "id", Value: u0})))
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)
	})

	t.Run("instance of another model", func(t *testing.T) {
		col, err := NewScalar("author", TargetName(newWideRegistry(t), "User"), Options{})
		require.NoError(t, err)

		_, err = col.Validate(FromInstance(dummyInstance()))
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)
	})

	t.Run("composite target", func(t *testing.T) {
		col, err := NewScalar("dummy", TargetName(newWideRegistry(t), "Dummy"), Options{})
		require.NoError(t, err)

		_, err = col.Validate(FromScalar("Org1"))
		assert.ErrorIs(t, err, ErrNotScalarKey)
	})

	t.Run("null", func(t *testing.T) {
		col, err := NewScalar("author", TargetName(newWideRegistry(t), "User"), Options{})
		require.NoError(t, err)

		stored, err := col.ToStorage(Null())
		require.NoError(t, err)
		assert.Nil(t, stored)

		v, err := col.ToRuntime(nil)
		require.NoError(t, err)
		assert.True(t, v.IsNull())

		_, err = col.KeyFor(Null())
		assert.ErrorIs(t, err, ErrNullValue)
	})

	t.Run("malformed stored value", func(t *testing.T) {
		col, err := NewScalar("author", TargetName(newWideRegistry(t), "User"), Options{})
		require.NoError(t, err)

		_, err = col.ToRuntime("garbage")
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)
	})
}

func TestCrossStoreCodec(t *testing.T) {
	sqlRegistry := schema.NewRegistry("sql")
	require.NoError(t, sqlRegistry.Register(userModel("sql")))

	cross, err := NewCrossStore("account", TargetName(sqlRegistry, "User"), Options{})
	require.NoError(t, err)
	scalar, err := NewScalar("account", TargetName(newWideRegistry(t), "User"), Options{})
	require.NoError(t, err)

	assert.Equal(t, VariantCrossStore, cross.Variant())
	assert.Equal(t, "sql", cross.Engine())

	t.Run("parity with scalar codec", func(t *testing.T) {
		id := uuid.New()
		foreign := &fakeInstance{model: "User", engine: "sql", values: map[string]interface{}{"id": id}}
		local := &fakeInstance{model: "User", engine: "wide", values: map[string]interface{}{"id": id}}

		crossStored, err := cross.ToStorage(FromInstance(foreign))
		require.NoError(t, err)
		scalarStored, err := scalar.ToStorage(FromInstance(local))
		require.NoError(t, err)
		assert.Equal(t, scalarStored, crossStored)

		crossBack, err := cross.ToRuntime(crossStored)
		require.NoError(t, err)
		scalarBack, err := scalar.ToRuntime(scalarStored)
		require.NoError(t, err)
		assert.True(t, crossBack.Equal(scalarBack))
	})

	t.Run("primary engine instance is rejected", func(t *testing.T) {
		local := &fakeInstance{model: "User", engine: "wide", values: map[string]interface{}{"id": uuid.New()}}
		_, err := cross.Validate(FromInstance(local))
		assert.ErrorIs(t, err, schema.ErrTypeMismatch)
	})
}

func TestTarget(t *testing.T) {
	t.Run("forward reference", func(t *testing.T) {
		reg := schema.NewRegistry("wide")
		col, err := NewComposite("foreign_key", TargetName(reg, "Dummy"), Options{})
		require.NoError(t, err)

		_, err = col.Validate(FromInstance(dummyInstance()))
		assert.ErrorIs(t, err, schema.ErrUnresolvedModel)
		assert.False(t, col.Target().Resolved())

		require.NoError(t, reg.Register(dummyModel()))

		_, err = col.Validate(FromInstance(dummyInstance()))
		require.NoError(t, err)
		assert.True(t, col.Target().Resolved())
	})

	t.Run("resolution is cached", func(t *testing.T) {
		reg := newWideRegistry(t)
		target := TargetName(reg, "Dummy")

		first, err := target.KeyDescriptor()
		require.NoError(t, err)

		reg.Clear()

		second, err := target.KeyDescriptor()
		require.NoError(t, err)
		assert.True(t, first.Equal(second))
	})

	t.Run("empty key", func(t *testing.T) {
		reg := schema.NewRegistry("wide")
		require.NoError(t, reg.Register(schema.NewModel("Loose", "wide").Column("note", schema.TypeText)))

		_, err := TargetName(reg, "Loose").KeyDescriptor()
		assert.ErrorIs(t, err, schema.ErrEmptyKey)
	})

	t.Run("descriptor handle", func(t *testing.T) {
		target := TargetModel(dummyModel())
		assert.Equal(t, "Dummy", target.Name())
		assert.Equal(t, "wide", target.Engine())

		kd, err := target.KeyDescriptor()
		require.NoError(t, err)
		assert.Equal(t, 3, kd.Len())
	})

	t.Run("concurrent first use converges", func(t *testing.T) {
		target := TargetName(newWideRegistry(t), "Dummy")

		const workers = 32
		results := make([]schema.KeyDescriptor, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				results[i], errs[i] = target.KeyDescriptor()
			}(i)
		}
		close(start)
		wg.Wait()

		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			assert.True(t, results[0].Equal(results[i]))
		}
	})

	t.Run("declaration errors", func(t *testing.T) {
		_, err := NewScalar("", TargetName(newWideRegistry(t), "User"), Options{})
		assert.True(t, errors.Is(err, ErrNoColumnName))

		_, err = NewScalar("author", nil, Options{})
		assert.ErrorIs(t, err, ErrNoTarget)

		_, err = NewCrossStore("author", TargetName(nil, ""), Options{})
		assert.ErrorIs(t, err, ErrNoTarget)

		col, err := NewScalar("author", TargetName(nil, "User"), Options{})
		require.NoError(t, err)
		_, err = col.KeyDescriptor()
		assert.ErrorIs(t, err, ErrNoTarget)
	})
}

func TestValueOf(t *testing.T) {
	inst := dummyInstance()
	km := schema.NewKeyMapping(schema.KeyValue{Name: "id", Value: 1})

	assert.Equal(t, KindNull, Of(nil).Kind())
	assert.Equal(t, KindInstance, Of(inst).Kind())
	assert.Equal(t, KindKey, Of(km).Kind())
	assert.Equal(t, KindKey, Of(&km).Kind())
	assert.Equal(t, KindKey, Of(map[string]interface{}{"id": 1}).Kind())
	assert.Equal(t, KindScalar, Of(u0).Kind())
	assert.Equal(t, KindScalar, Of(FromScalar(u0)).Kind())
	assert.Equal(t, "<Dummy instance>", Of(inst).String())
}

func TestParseVariant(t *testing.T) {
	for input, expected := range map[string]Variant{
		"scalar":      VariantScalar,
		"composite":   VariantComposite,
		"cross_store": VariantCrossStore,
	} {
		got, err := ParseVariant(input)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
		assert.Equal(t, input, got.String())
	}

	_, err := ParseVariant("many")
	assert.Error(t, err)
}

func mustGet(t *testing.T, km schema.KeyMapping, name string) interface{} {
	t.Helper()
	v, ok := km.Get(name)
	require.True(t, ok, "missing %s", name)
	return v
}
