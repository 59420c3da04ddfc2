// Package audit quản lý audit trail của hệ thống ERP: ghi nhận mọi thay đổi
// dữ liệu kèm hash toàn vẹn, hỗ trợ rollback, kiểm tra chuỗi toàn vẹn và
// phát hiện hoạt động bất thường.
package audit

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Các loại operation được ghi nhận trong change record
const (
	OperationCreate   = "create"
	OperationUpdate   = "update"
	OperationDelete   = "delete"
	OperationRollback = "rollback"
)

// Mức độ nghiêm trọng của finding bất thường
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ChangeRecord lưu một thay đổi dữ liệu trong collection change_records.
// BeforeState/AfterState lưu snapshot document dưới dạng bson, đã được
// sanitize trước khi ghi.
type ChangeRecord struct {
	ID primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`

	Collection string `json:"collection" bson:"collection" index:"single,compound:change_entity_history"`
	EntityID   string `json:"entityId" bson:"entityId" index:"single,compound:change_entity_history"`
	Operation  string `json:"operation" bson:"operation" index:"single"` // create | update | delete | rollback
	UserID     string `json:"userId,omitempty" bson:"userId,omitempty" index:"single"`

	BeforeState interface{} `json:"beforeState,omitempty" bson:"beforeState,omitempty"`
	AfterState  interface{} `json:"afterState,omitempty" bson:"afterState,omitempty"`

	// ChangeHash là SHA-256 hex của collection:entityId:operation:afterState
	ChangeHash string `json:"changeHash" bson:"changeHash" index:"single"`

	RolledBack        bool               `json:"rolledBack" bson:"rolledBack" index:"single"`
	RollbackOf        primitive.ObjectID `json:"rollbackOf,omitempty" bson:"rollbackOf,omitempty"`
	RolledBackBy      string             `json:"rolledBackBy,omitempty" bson:"rolledBackBy,omitempty"`
	RollbackTimestamp int64              `json:"rollbackTimestamp,omitempty" bson:"rollbackTimestamp,omitempty"`

	Timestamp int64 `json:"timestamp" bson:"timestamp" index:"single,order:-1,compound:change_entity_history"`
	CreatedAt int64 `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt int64 `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// IntegrityViolation mô tả một record có hash lưu trữ không khớp với hash tính lại
type IntegrityViolation struct {
	RecordID     primitive.ObjectID `json:"recordId"`
	Collection   string             `json:"collection"`
	EntityID     string             `json:"entityId"`
	StoredHash   string             `json:"storedHash"`
	ComputedHash string             `json:"computedHash"`
	Timestamp    int64              `json:"timestamp"`
}

// IntegrityReport là kết quả kiểm tra chuỗi toàn vẹn của một dải records
type IntegrityReport struct {
	CheckedCount int                  `json:"checkedCount"`
	ValidCount   int                  `json:"validCount"`
	Violations   []IntegrityViolation `json:"violations"`
	CheckedAt    int64                `json:"checkedAt"`
}

// SuspiciousFinding mô tả một pattern hoạt động bất thường được phát hiện
type SuspiciousFinding struct {
	Type        string               `json:"type"` // rapid_changes | hash_mismatch | bulk_operation
	Severity    string               `json:"severity"`
	Collection  string               `json:"collection,omitempty"`
	EntityID    string               `json:"entityId,omitempty"`
	UserID      string               `json:"userId,omitempty"`
	Description string               `json:"description"`
	RecordIDs   []primitive.ObjectID `json:"recordIds,omitempty"`
	Count       int                  `json:"count"`
}

// ComplianceReport tổng hợp hoạt động audit trong một khoảng thời gian
type ComplianceReport struct {
	From                 int64                `json:"from"`
	To                   int64                `json:"to"`
	TotalChanges         int                  `json:"totalChanges"`
	ChangesByOperation   map[string]int       `json:"changesByOperation"`
	ChangesByCollection  map[string]int       `json:"changesByCollection"`
	ChangesByUser        map[string]int       `json:"changesByUser"`
	RollbackCount        int                  `json:"rollbackCount"`
	IntegrityViolations  []IntegrityViolation `json:"integrityViolations"`
	SuspiciousFindings   []SuspiciousFinding  `json:"suspiciousFindings"`
	GeneratedAt          int64                `json:"generatedAt"`
}

// RollbackSafety mô tả kết quả kiểm tra trước khi rollback một change record
type RollbackSafety struct {
	Safe             bool     `json:"safe"`
	Reason           string   `json:"reason,omitempty"`
	DependentChanges int      `json:"dependentChanges"`
	Warnings         []string `json:"warnings,omitempty"`
}
