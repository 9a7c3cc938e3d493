package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dummyModel() *Model {
	return NewModel("Dummy", "wide").
		Column("info", TypeText).
		Clustering("start_date", TypeTimestamp).
		Partition("organization", TypeText).
		Clustering("key", TypeUUID)
}

func TestBuildKeyDescriptor(t *testing.T) {
	t.Run("partition components come first", func(t *testing.T) {
		kd, err := BuildKeyDescriptor(dummyModel())
		require.NoError(t, err)

		assert.Equal(t, "Dummy", kd.Model)
		assert.Equal(t, []string{"organization", "start_date", "key"}, kd.Names())
		assert.True(t, kd.IsComposite())
		assert.Equal(t, "Dummy(organization: text, start_date: timestamp, key: uuid)", kd.String())

		attr, ok := kd.Attribute("start_date")
		require.True(t, ok)
		assert.Equal(t, TypeTimestamp, attr.Type)

		_, ok = kd.Attribute("info")
		assert.False(t, ok)
	})

	t.Run("deterministic", func(t *testing.T) {
		m := dummyModel()
		first, err := BuildKeyDescriptor(m)
		require.NoError(t, err)
		second, err := BuildKeyDescriptor(m)
		require.NoError(t, err)

		assert.True(t, first.Equal(second))
	})

	t.Run("single attribute key", func(t *testing.T) {
		kd, err := BuildKeyDescriptor(NewModel("Post", "wide").Partition("id", TypeUUID))
		require.NoError(t, err)
		assert.Equal(t, 1, kd.Len())
		assert.False(t, kd.IsComposite())
	})

	t.Run("no key attributes", func(t *testing.T) {
		_, err := BuildKeyDescriptor(NewModel("Loose", "wide").Column("note", TypeText))

		var emptyErr *EmptyKeyError
		require.ErrorAs(t, err, &emptyErr)
		assert.Equal(t, "Loose", emptyErr.Model)
		assert.ErrorIs(t, err, ErrEmptyKey)
	})

	t.Run("nil model", func(t *testing.T) {
		_, err := BuildKeyDescriptor(nil)
		assert.Error(t, err)
	})

	t.Run("missing and extra names", func(t *testing.T) {
		kd, err := BuildKeyDescriptor(dummyModel())
		require.NoError(t, err)

		km := NewKeyMapping(
			KeyValue{Name: "organization", Value: "Org1"},
			KeyValue{Name: "info", Value: "x"},
		)
		assert.Equal(t, []string{"start_date", "key"}, kd.Missing(km))
		assert.Equal(t, []string{"info"}, kd.Extra(km))
	})
}

func TestKeyMapping(t *testing.T) {
	t.Run("insertion order", func(t *testing.T) {
		var km KeyMapping
		km.Set("b", 1)
		km.Set("a", 2)
		km.Set("b", 3)

		assert.Equal(t, []string{"b", "a"}, km.Names())
		v, ok := km.Get("b")
		require.True(t, ok)
		assert.Equal(t, 3, v)
		assert.Equal(t, 2, km.Len())
		assert.Equal(t, "{b: 3, a: 2}", km.String())
	})

	t.Run("copies are independent", func(t *testing.T) {
		a := NewKeyMapping(KeyValue{"x", 1})
		b := a
		b.Set("x", 2)
		b.Set("y", 3)
		a.Set("z", 4)

		v, _ := a.Get("x")
		assert.Equal(t, 1, v)
		assert.Equal(t, []string{"x", "z"}, a.Names())
		v, _ = b.Get("x")
		assert.Equal(t, 2, v)
		assert.Equal(t, []string{"x", "y"}, b.Names())
	})

	t.Run("from map is sorted", func(t *testing.T) {
		km := KeyMappingFrom(map[string]interface{}{"z": 1, "a": 2, "m": 3})
		assert.Equal(t, []string{"a", "m", "z"}, km.Names())
	})

	t.Run("equality is order sensitive", func(t *testing.T) {
		a := NewKeyMapping(KeyValue{"x", 1}, KeyValue{"y", 2})
		b := NewKeyMapping(KeyValue{"y", 2}, KeyValue{"x", 1})
		c := NewKeyMapping(KeyValue{"x", 1}, KeyValue{"y", 2})

		assert.False(t, a.Equal(b))
		assert.True(t, a.Equal(c))
		assert.Equal(t, a.Map(), b.Map())
	})

	t.Run("json keeps order", func(t *testing.T) {
		km := NewKeyMapping(
			KeyValue{"organization", "Org1"},
			KeyValue{"start_date", "1700000000123"},
			KeyValue{"key", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		)

		data, err := json.Marshal(km)
		require.NoError(t, err)
		assert.Equal(t,
			`{"organization":"Org1","start_date":"1700000000123","key":"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}`,
			string(data))

		var back KeyMapping
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, km.Equal(back))
	})

	t.Run("json rejects non objects", func(t *testing.T) {
		var km KeyMapping
		assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &km))
	})

	t.Run("sql valuer and scanner", func(t *testing.T) {
		km := NewKeyMapping(KeyValue{"id", "abc"})

		v, err := km.Value()
		require.NoError(t, err)
		assert.Equal(t, `{"id":"abc"}`, v)

		var scanned KeyMapping
		require.NoError(t, scanned.Scan([]byte(`{"id":"abc"}`)))
		assert.True(t, km.Equal(scanned))

		require.NoError(t, scanned.Scan(nil))
		assert.Equal(t, 0, scanned.Len())

		assert.Error(t, scanned.Scan(42))
	})
}
