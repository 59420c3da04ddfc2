package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findingsOfType(findings []SuspiciousFinding, findingType string) []SuspiciousFinding {
	out := []SuspiciousFinding{}
	for _, f := range findings {
		if f.Type == findingType {
			out = append(out, f)
		}
	}
	return out
}

func TestDetectRapidChanges(t *testing.T) {
	records := []ChangeRecord{}
	// 5 thay đổi trên cùng entity trong 40 giây
	for i := int64(0); i < 5; i++ {
		records = append(records, makeRecord(t, "students", "hot", OperationUpdate, 1_000_000+i*10_000))
	}
	// entity khác chỉ có 2 thay đổi
	records = append(records, makeRecord(t, "students", "cold", OperationUpdate, 1_000_000))
	records = append(records, makeRecord(t, "students", "cold", OperationUpdate, 1_500_000))

	findings := findingsOfType(DetectSuspicious(records), "rapid_changes")
	require.Len(t, findings, 1)
	assert.Equal(t, "hot", findings[0].EntityID)
	assert.Equal(t, SeverityMedium, findings[0].Severity)
	assert.Equal(t, 5, findings[0].Count)
	assert.Len(t, findings[0].RecordIDs, 5)
}

func TestDetectRapidChangesRespectsWindow(t *testing.T) {
	// 5 thay đổi nhưng trải đều mỗi 30s -> không có dải 5 record nào gọn trong 60s
	records := []ChangeRecord{}
	for i := int64(0); i < 5; i++ {
		records = append(records, makeRecord(t, "students", "slow", OperationUpdate, 1_000_000+i*30_000))
	}

	findings := findingsOfType(DetectSuspicious(records), "rapid_changes")
	assert.Empty(t, findings)
}

func TestDetectHashMismatchSeverityHigh(t *testing.T) {
	good := makeRecord(t, "students", "a", OperationCreate, 1000)
	bad := makeRecord(t, "students", "b", OperationUpdate, 2000)
	bad.ChangeHash = "deadbeef"

	findings := findingsOfType(DetectSuspicious([]ChangeRecord{good, bad}), "hash_mismatch")
	require.Len(t, findings, 1)
	assert.Equal(t, SeverityHigh, findings[0].Severity)
	assert.Equal(t, "b", findings[0].EntityID)
}

func TestDetectBulkOperations(t *testing.T) {
	records := []ChangeRecord{}
	for i := int64(0); i < 50; i++ {
		r := makeRecord(t, "grades", "e", OperationUpdate, 1000+i)
		r.UserID = "admin01"
		records = append(records, r)
	}
	// user khác dưới ngưỡng
	for i := int64(0); i < 10; i++ {
		r := makeRecord(t, "grades", "f", OperationUpdate, 1000+i)
		r.UserID = "staff02"
		records = append(records, r)
	}

	findings := findingsOfType(DetectSuspicious(records), "bulk_operation")
	require.Len(t, findings, 1)
	assert.Equal(t, "admin01", findings[0].UserID)
	assert.Equal(t, SeverityLow, findings[0].Severity)
	assert.Equal(t, 50, findings[0].Count)
}

func TestBuildComplianceReport(t *testing.T) {
	records := []ChangeRecord{
		makeRecord(t, "students", "a", OperationCreate, 1000),
		makeRecord(t, "students", "a", OperationUpdate, 2000),
		makeRecord(t, "courses", "b", OperationDelete, 3000),
		makeRecord(t, "students", "a", OperationRollback, 4000),
	}
	records[0].UserID = "u1"
	records[1].UserID = "u1"
	records[2].UserID = "u2"

	report := BuildComplianceReport(500, 5000, records)

	assert.Equal(t, int64(500), report.From)
	assert.Equal(t, int64(5000), report.To)
	assert.Equal(t, 4, report.TotalChanges)
	assert.Equal(t, 1, report.RollbackCount)
	assert.Equal(t, 2, report.ChangesByOperation[OperationUpdate]+report.ChangesByOperation[OperationCreate])
	assert.Equal(t, 3, report.ChangesByCollection["students"])
	assert.Equal(t, 2, report.ChangesByUser["u1"])
	assert.Empty(t, report.IntegrityViolations)
}
