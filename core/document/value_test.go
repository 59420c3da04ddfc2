package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCanonicalJSONSortsMapKeys(t *testing.T) {
	v := Map(map[string]Value{
		"zeta":  Number(1),
		"alpha": String("x"),
		"mid": Map(map[string]Value{
			"b": Bool(true),
			"a": Null(),
		}),
	})

	data, err := v.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"x","mid":{"a":null,"b":true},"zeta":1}`, string(data))
}

func TestCanonicalJSONStableAcrossConstructions(t *testing.T) {
	first := Map(map[string]Value{"a": Number(1), "b": Number(2), "c": Number(3)})
	second := Map(map[string]Value{"c": Number(3), "a": Number(1), "b": Number(2)})

	d1, err := first.CanonicalJSON()
	require.NoError(t, err)
	d2, err := second.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestCanonicalJSONNumbers(t *testing.T) {
	data, err := List(Number(1), Number(2.5), Number(-3)).CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, `[1,2.5,-3]`, string(data))
}

func TestFromInterfaceRoundTrip(t *testing.T) {
	raw := bson.M{
		"name":    "Nguyễn Văn A",
		"credits": int32(24),
		"gpa":     3.75,
		"active":  true,
		"tags":    primitive.A{"cse", "sem5"},
		"profile": bson.M{"year": int64(3)},
		"note":    nil,
	}

	v := FromInterface(raw)
	require.Equal(t, KindMap, v.Kind())

	name, ok := v.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Nguyễn Văn A", name.StringValue())

	credits, _ := v.Get("credits")
	assert.Equal(t, KindNumber, credits.Kind())
	assert.Equal(t, float64(24), credits.NumberValue())

	tags, _ := v.Get("tags")
	require.Equal(t, KindList, tags.Kind())
	assert.Len(t, tags.ListValue(), 2)

	note, _ := v.Get("note")
	assert.True(t, note.IsNull())

	// Chuyển ngược lại rồi parse lần nữa phải cho Value bằng nhau
	again := FromInterface(v.ToInterface())
	assert.True(t, v.Equal(again))
}

func TestFromInterfaceObjectID(t *testing.T) {
	id := primitive.NewObjectID()
	v := FromInterface(id)
	assert.Equal(t, KindString, v.Kind())
	assert.Equal(t, id.Hex(), v.StringValue())
}

func TestSentinelMarkersRoundTrip(t *testing.T) {
	v := Map(map[string]Value{
		"old":     PreviousValue(),
		"dropped": RemovedField(),
	})

	raw := v.ToInterface()
	back := FromInterface(raw)

	old, _ := back.Get("old")
	assert.Equal(t, KindPreviousValue, old.Kind())
	dropped, _ := back.Get("dropped")
	assert.Equal(t, KindRemovedField, dropped.Kind())
}

func TestEqualDistinguishesKinds(t *testing.T) {
	assert.False(t, Null().Equal(Bool(false)))
	assert.False(t, Number(0).Equal(String("0")))
	assert.False(t, PreviousValue().Equal(RemovedField()))
	assert.True(t, PreviousValue().Equal(PreviousValue()))
	assert.True(t, List(Number(1)).Equal(List(Number(1))))
	assert.False(t, List(Number(1)).Equal(List(Number(1), Number(2))))
}

func TestSetDoesNotMutateOriginal(t *testing.T) {
	base := Map(map[string]Value{"a": Number(1)})
	updated := base.Set("b", Number(2))

	_, ok := base.Get("b")
	assert.False(t, ok)
	b, ok := updated.Get("b")
	require.True(t, ok)
	assert.Equal(t, float64(2), b.NumberValue())
}
