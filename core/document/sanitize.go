package document

import "strings"

// Các substring của key bị coi là nhạy cảm. So khớp không phân biệt hoa thường.
var sensitiveKeySubstrings = []string{
	"password",
	"token",
	"secret",
	"key",
	"hash",
}

const redactedMarker = "[REDACTED]"

// isSensitiveKey kiểm tra key có chứa substring nhạy cảm không
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sub := range sensitiveKeySubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// Sanitize che giá trị của mọi map entry có key nhạy cảm, đệ quy qua cả map
// lẫn list. Hàm total: mọi variant của Value đều được xử lý, sentinel và các
// giá trị scalar đi qua nguyên vẹn.
//
// Tham số:
//   - v: Value cần làm sạch
//
// Trả về:
//   - Value: bản sao đã được che các giá trị nhạy cảm
func Sanitize(v Value) Value {
	switch v.Kind() {
	case KindMap:
		m := make(map[string]Value, len(v.mapVal))
		for k, item := range v.mapVal {
			if isSensitiveKey(k) {
				m[k] = String(redactedMarker)
			} else {
				m[k] = Sanitize(item)
			}
		}
		return Map(m)
	case KindList:
		items := make([]Value, 0, len(v.listVal))
		for _, item := range v.listVal {
			items = append(items, Sanitize(item))
		}
		return List(items...)
	default:
		return v
	}
}
