package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tanush-em/ERP/core/common"
	"github.com/tanush-em/ERP/core/document"
)

func makeRecord(t *testing.T, collection, entityID, operation string, ts int64) ChangeRecord {
	t.Helper()
	after := document.Map(map[string]document.Value{"v": document.Number(float64(ts))})
	hash, err := ComputeChangeHash(collection, entityID, operation, after)
	require.NoError(t, err)
	return ChangeRecord{
		ID:         primitive.NewObjectID(),
		Collection: collection,
		EntityID:   entityID,
		Operation:  operation,
		AfterState: after.ToInterface(),
		ChangeHash: hash,
		Timestamp:  ts,
	}
}

func TestValidateChainAllValid(t *testing.T) {
	records := []ChangeRecord{
		makeRecord(t, "students", "a", OperationCreate, 1000),
		makeRecord(t, "students", "a", OperationUpdate, 2000),
		makeRecord(t, "courses", "b", OperationDelete, 3000),
	}

	report := ValidateChain(records)
	assert.Equal(t, 3, report.CheckedCount)
	assert.Equal(t, 3, report.ValidCount)
	assert.Empty(t, report.Violations)
}

func TestValidateChainDetectsTampering(t *testing.T) {
	good := makeRecord(t, "students", "a", OperationCreate, 1000)
	bad := makeRecord(t, "students", "b", OperationUpdate, 2000)
	bad.ChangeHash = "0000000000000000000000000000000000000000000000000000000000000000"

	report := ValidateChain([]ChangeRecord{good, bad})
	assert.Equal(t, 2, report.CheckedCount)
	assert.Equal(t, 1, report.ValidCount)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, bad.ID, report.Violations[0].RecordID)
	assert.Equal(t, "b", report.Violations[0].EntityID)
	assert.NotEqual(t, bad.ChangeHash, report.Violations[0].ComputedHash)
}

func TestPlanRollbackCreate(t *testing.T) {
	record := makeRecord(t, "students", "a", OperationCreate, 1000)
	plan, err := PlanRollback(record)
	require.NoError(t, err)
	assert.Equal(t, RollbackActionDelete, plan.Action)
	assert.Nil(t, plan.Document)
}

func TestPlanRollbackUpdateRestoresBeforeState(t *testing.T) {
	record := makeRecord(t, "students", "a", OperationUpdate, 2000)
	before := map[string]interface{}{"v": float64(1)}
	record.BeforeState = before

	plan, err := PlanRollback(record)
	require.NoError(t, err)
	assert.Equal(t, RollbackActionReplace, plan.Action)
	assert.Equal(t, before, plan.Document)
}

func TestPlanRollbackDeleteReinsertsOriginal(t *testing.T) {
	record := makeRecord(t, "students", "a", OperationDelete, 3000)
	before := map[string]interface{}{"v": float64(2)}
	record.BeforeState = before

	plan, err := PlanRollback(record)
	require.NoError(t, err)
	assert.Equal(t, RollbackActionReinsert, plan.Action)
	assert.Equal(t, before, plan.Document)
}

func TestPlanRollbackRejectsAlreadyRolledBack(t *testing.T) {
	record := makeRecord(t, "students", "a", OperationUpdate, 2000)
	record.BeforeState = map[string]interface{}{"v": float64(1)}
	record.RolledBack = true

	_, err := PlanRollback(record)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAlreadyRolledBack))
}

func TestPlanRollbackRejectsRollbackOperation(t *testing.T) {
	record := makeRecord(t, "students", "a", OperationRollback, 4000)
	_, err := PlanRollback(record)
	assert.Error(t, err)
}

func TestPlanRollbackUpdateWithoutBeforeState(t *testing.T) {
	record := makeRecord(t, "students", "a", OperationUpdate, 2000)
	record.BeforeState = nil
	_, err := PlanRollback(record)
	assert.Error(t, err)
}

func TestRestoreIDKeepsOriginalObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := map[string]interface{}{"name": "x"}

	restored := restoreID(doc, oid.Hex())
	m, ok := restored.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, oid, m["_id"])
	assert.Equal(t, "x", m["name"])

	// Document gốc không bị mutate
	_, has := doc["_id"]
	assert.False(t, has)
}
