package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanush-em/ERP/core/document"
)

func sampleState(gpa float64) document.Value {
	return document.Map(map[string]document.Value{
		"name":    document.String("Trần Thị B"),
		"gpa":     document.Number(gpa),
		"active":  document.Bool(true),
		"courses": document.List(document.String("CS101"), document.String("MA202")),
	})
}

func TestComputeChangeHashDeterministic(t *testing.T) {
	h1, err := ComputeChangeHash("students", "65f0a1", "update", sampleState(3.5))
	require.NoError(t, err)
	h2, err := ComputeChangeHash("students", "65f0a1", "update", sampleState(3.5))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestComputeChangeHashSensitivity(t *testing.T) {
	base, err := ComputeChangeHash("students", "65f0a1", "update", sampleState(3.5))
	require.NoError(t, err)

	otherState, err := ComputeChangeHash("students", "65f0a1", "update", sampleState(3.6))
	require.NoError(t, err)
	assert.NotEqual(t, base, otherState)

	otherCollection, err := ComputeChangeHash("courses", "65f0a1", "update", sampleState(3.5))
	require.NoError(t, err)
	assert.NotEqual(t, base, otherCollection)

	otherEntity, err := ComputeChangeHash("students", "65f0a2", "update", sampleState(3.5))
	require.NoError(t, err)
	assert.NotEqual(t, base, otherEntity)

	otherOp, err := ComputeChangeHash("students", "65f0a1", "delete", sampleState(3.5))
	require.NoError(t, err)
	assert.NotEqual(t, base, otherOp)
}

func TestComputeChangeHashIgnoresFieldOrder(t *testing.T) {
	first := document.Map(map[string]document.Value{"a": document.Number(1), "b": document.Number(2)})
	second := document.Map(map[string]document.Value{"b": document.Number(2), "a": document.Number(1)})

	h1, err := ComputeChangeHash("students", "x", "create", first)
	require.NoError(t, err)
	h2, err := ComputeChangeHash("students", "x", "create", second)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestVerifyChangeHash(t *testing.T) {
	after := sampleState(3.5)
	hash, err := ComputeChangeHash("students", "65f0a1", "update", after)
	require.NoError(t, err)

	record := ChangeRecord{
		Collection: "students",
		EntityID:   "65f0a1",
		Operation:  "update",
		AfterState: after.ToInterface(),
		ChangeHash: hash,
	}

	ok, computed, err := VerifyChangeHash(record)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, hash, computed)

	// Sửa đổi trạng thái sau khi ghi phải bị phát hiện
	tampered := after.Set("gpa", document.Number(4.0))
	record.AfterState = tampered.ToInterface()
	ok, _, err = VerifyChangeHash(record)
	require.NoError(t, err)
	assert.False(t, ok)
}
