package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanush-em/ERP/core/document"
)

func TestReconstructBeforeMarksUpdatedFields(t *testing.T) {
	after := document.Map(map[string]document.Value{
		"name":   document.String("CS101"),
		"credit": document.Number(4),
		"status": document.String("open"),
	})

	before := ReconstructBefore(after, map[string]interface{}{"credit": int32(4)}, nil)

	credit, ok := before.Get("credit")
	require.True(t, ok)
	assert.Equal(t, document.KindPreviousValue, credit.Kind())

	// Field không bị update giữ nguyên
	name, _ := before.Get("name")
	assert.Equal(t, "CS101", name.StringValue())
	status, _ := before.Get("status")
	assert.Equal(t, "open", status.StringValue())
}

func TestReconstructBeforeRestoresRemovedFields(t *testing.T) {
	after := document.Map(map[string]document.Value{
		"name": document.String("CS101"),
	})

	before := ReconstructBefore(after, nil, []string{"instructor"})

	instructor, ok := before.Get("instructor")
	require.True(t, ok)
	assert.Equal(t, document.KindRemovedField, instructor.Kind())

	// Trạng thái sau không có field đã xóa
	_, ok = after.Get("instructor")
	assert.False(t, ok)
}

func TestReconstructBeforeDottedPath(t *testing.T) {
	after := document.Map(map[string]document.Value{
		"profile": document.Map(map[string]document.Value{
			"gpa":  document.Number(3.9),
			"year": document.Number(3),
		}),
	})

	before := ReconstructBefore(after, map[string]interface{}{"profile.gpa": 3.9}, nil)

	profile, ok := before.Get("profile")
	require.True(t, ok)
	gpa, ok := profile.Get("gpa")
	require.True(t, ok)
	assert.Equal(t, document.KindPreviousValue, gpa.Kind())

	year, _ := profile.Get("year")
	assert.Equal(t, float64(3), year.NumberValue())
}

func TestReconstructBeforeDottedPathMissingParent(t *testing.T) {
	after := document.Map(map[string]document.Value{
		"name": document.String("x"),
	})

	// Parent không tồn tại trong fullDocument: đánh dấu tại segment đầu
	before := ReconstructBefore(after, map[string]interface{}{"meta.flag": true}, nil)

	meta, ok := before.Get("meta")
	require.True(t, ok)
	assert.Equal(t, document.KindPreviousValue, meta.Kind())
}

func TestReconstructBeforeDoesNotMutateAfter(t *testing.T) {
	after := document.Map(map[string]document.Value{
		"credit": document.Number(4),
	})

	_ = ReconstructBefore(after, map[string]interface{}{"credit": int32(4)}, []string{"note"})

	credit, _ := after.Get("credit")
	assert.Equal(t, document.KindNumber, credit.Kind())
	_, hasNote := after.Get("note")
	assert.False(t, hasNote)
}

func TestReconstructBeforeNonMapPassthrough(t *testing.T) {
	v := document.String("scalar")
	assert.True(t, ReconstructBefore(v, map[string]interface{}{"a": 1}, nil).Equal(v))
}

func TestExtractEntityID(t *testing.T) {
	assert.Equal(t, "abc", extractEntityID("abc"))
	assert.Equal(t, "", extractEntityID(nil))
}
