package watcher

import (
	"strings"

	"github.com/tanush-em/ERP/core/document"
)

// ReconstructBefore tái tạo trạng thái trước của một update event từ
// fullDocument (trạng thái sau, lấy qua updateLookup) và updateDescription
// của change stream. Hàm thuần.
//
// Quy tắc:
//   - Field nằm trong updatedFields: giá trị cũ không xác định -> sentinel PreviousValue
//   - Field nằm trong removedFields: tồn tại trước update nhưng đã bị xóa -> thêm lại
//     với sentinel RemovedField
//   - Các field còn lại giữ nguyên từ trạng thái sau
//
// Key dạng dotted path ("profile.gpa") được xử lý đệ quy theo từng segment.
func ReconstructBefore(after document.Value, updatedFields map[string]interface{}, removedFields []string) document.Value {
	if after.Kind() != document.KindMap {
		return after
	}
	before := after
	for path := range updatedFields {
		before = setPath(before, strings.Split(path, "."), document.PreviousValue())
	}
	for _, path := range removedFields {
		before = setPath(before, strings.Split(path, "."), document.RemovedField())
	}
	return before
}

// setPath set một sentinel tại dotted path trong Value map, trả về Value mới.
// Nếu segment trung gian không phải map thì sentinel được đặt tại segment đó.
func setPath(v document.Value, segments []string, sentinel document.Value) document.Value {
	if len(segments) == 0 || v.Kind() != document.KindMap {
		return v
	}
	head := segments[0]
	if len(segments) == 1 {
		return v.Set(head, sentinel)
	}
	child, ok := v.Get(head)
	if !ok || child.Kind() != document.KindMap {
		// Không đi sâu hơn được, đánh dấu cả subtree
		return v.Set(head, sentinel)
	}
	return v.Set(head, setPath(child, segments[1:], sentinel))
}
