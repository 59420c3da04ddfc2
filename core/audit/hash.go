package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/tanush-em/ERP/core/document"
)

// ComputeChangeHash tính SHA-256 hex của một thay đổi, dùng làm hash toàn vẹn.
// Input là chuỗi "collection:entityId:operation:<canonical JSON của afterState>".
// Canonical JSON sort map keys đệ quy nên hash ổn định với mọi thứ tự field.
//
// Tham số:
//   - collection: tên collection bị thay đổi
//   - entityID: id của document (hex string)
//   - operation: loại thay đổi (create | update | delete | rollback)
//   - after: trạng thái document sau thay đổi
//
// Trả về:
//   - string: hash dạng hex 64 ký tự
//   - error: lỗi serialize nếu có
func ComputeChangeHash(collection, entityID, operation string, after document.Value) (string, error) {
	canonical, err := after.CanonicalJSON()
	if err != nil {
		return "", err
	}
	payload := fmt.Sprintf("%s:%s:%s:%s", collection, entityID, operation, canonical)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChangeHash tính lại hash từ nội dung record và so với hash đã lưu
func VerifyChangeHash(record ChangeRecord) (bool, string, error) {
	after := document.FromInterface(record.AfterState)
	computed, err := ComputeChangeHash(record.Collection, record.EntityID, record.Operation, after)
	if err != nil {
		return false, "", err
	}
	return computed == record.ChangeHash, computed, nil
}
