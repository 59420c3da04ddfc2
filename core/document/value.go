// Package document định nghĩa kiểu Value đóng (closed tagged type) đại diện cho
// trạng thái document trong change records: null, bool, number, string, list, map,
// cùng hai sentinel cho before-state được tái tạo từ change stream.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tanush-em/ERP/core/common"
)

// Kind phân loại variant của Value
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
	// KindPreviousValue: field tồn tại trước update nhưng giá trị cũ không xác định
	KindPreviousValue
	// KindRemovedField: field đã bị xóa bởi update
	KindRemovedField
)

// Biểu diễn trên wire/storage của hai sentinel.
// Giữ nguyên format này để dữ liệu cũ và các consumer khác đọc được.
const (
	previousValueMarker = "[PREVIOUS_VALUE]"
	removedFieldMarker  = "[REMOVED_FIELD]"
)

// Value là một giá trị document bất biến. Zero value là Null.
type Value struct {
	kind    Kind
	boolVal bool
	numVal  float64
	strVal  string
	listVal []Value
	mapVal  map[string]Value
}

// Null trả về Value null
func Null() Value {
	return Value{kind: KindNull}
}

// Bool tạo Value bool
func Bool(b bool) Value {
	return Value{kind: KindBool, boolVal: b}
}

// Number tạo Value số
func Number(f float64) Value {
	return Value{kind: KindNumber, numVal: f}
}

// String tạo Value chuỗi
func String(s string) Value {
	return Value{kind: KindString, strVal: s}
}

// List tạo Value danh sách
func List(items ...Value) Value {
	return Value{kind: KindList, listVal: items}
}

// Map tạo Value map
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, mapVal: m}
}

// PreviousValue trả về sentinel cho giá trị cũ không xác định
func PreviousValue() Value {
	return Value{kind: KindPreviousValue}
}

// RemovedField trả về sentinel cho field đã bị xóa
func RemovedField() Value {
	return Value{kind: KindRemovedField}
}

// Kind trả về variant của Value
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull kiểm tra Value có phải null không
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// BoolValue trả về giá trị bool (chỉ hợp lệ khi Kind == KindBool)
func (v Value) BoolValue() bool {
	return v.boolVal
}

// NumberValue trả về giá trị số (chỉ hợp lệ khi Kind == KindNumber)
func (v Value) NumberValue() float64 {
	return v.numVal
}

// StringValue trả về giá trị chuỗi (chỉ hợp lệ khi Kind == KindString)
func (v Value) StringValue() string {
	return v.strVal
}

// ListValue trả về các phần tử của list (chỉ hợp lệ khi Kind == KindList)
func (v Value) ListValue() []Value {
	return v.listVal
}

// MapValue trả về các entries của map (chỉ hợp lệ khi Kind == KindMap)
func (v Value) MapValue() map[string]Value {
	return v.mapVal
}

// Get lấy entry của map theo key. Trả về Null và false nếu không tồn tại.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null(), false
	}
	item, ok := v.mapVal[key]
	return item, ok
}

// Set trả về một Value map mới với entry được thay thế. Value gốc không đổi.
func (v Value) Set(key string, item Value) Value {
	m := make(map[string]Value, len(v.mapVal)+1)
	for k, existing := range v.mapVal {
		m[k] = existing
	}
	m[key] = item
	return Map(m)
}

// Equal so sánh sâu hai Value theo từng variant
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull, KindPreviousValue, KindRemovedField:
		return true
	case KindBool:
		return v.boolVal == other.boolVal
	case KindNumber:
		return v.numVal == other.numVal
	case KindString:
		return v.strVal == other.strVal
	case KindList:
		if len(v.listVal) != len(other.listVal) {
			return false
		}
		for i := range v.listVal {
			if !v.listVal[i].Equal(other.listVal[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.mapVal) != len(other.mapVal) {
			return false
		}
		for k, item := range v.mapVal {
			otherItem, ok := other.mapVal[k]
			if !ok || !item.Equal(otherItem) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromInterface chuyển đổi dữ liệu decode từ MongoDB/JSON thành Value.
// ObjectID và thời gian được chuyển thành string, mọi kiểu số về float64.
// Hai marker string được nhận diện lại thành sentinel tương ứng.
func FromInterface(data interface{}) Value {
	switch d := data.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(d)
	case int:
		return Number(float64(d))
	case int32:
		return Number(float64(d))
	case int64:
		return Number(float64(d))
	case float32:
		return Number(float64(d))
	case float64:
		return Number(d)
	case string:
		switch d {
		case previousValueMarker:
			return PreviousValue()
		case removedFieldMarker:
			return RemovedField()
		}
		return String(d)
	case primitive.ObjectID:
		return String(d.Hex())
	case primitive.DateTime:
		return String(d.Time().UTC().Format("2006-01-02T15:04:05.000Z"))
	case primitive.Decimal128:
		if f, err := strconv.ParseFloat(d.String(), 64); err == nil {
			return Number(f)
		}
		return String(d.String())
	case primitive.A:
		items := make([]Value, 0, len(d))
		for _, item := range d {
			items = append(items, FromInterface(item))
		}
		return List(items...)
	case []interface{}:
		items := make([]Value, 0, len(d))
		for _, item := range d {
			items = append(items, FromInterface(item))
		}
		return List(items...)
	case bson.M:
		m := make(map[string]Value, len(d))
		for k, item := range d {
			m[k] = FromInterface(item)
		}
		return Map(m)
	case map[string]interface{}:
		m := make(map[string]Value, len(d))
		for k, item := range d {
			m[k] = FromInterface(item)
		}
		return Map(m)
	case bson.D:
		m := make(map[string]Value, len(d))
		for _, e := range d {
			m[e.Key] = FromInterface(e.Value)
		}
		return Map(m)
	default:
		// Các kiểu không xác định được render qua fmt để không mất dữ liệu
		return String(fmt.Sprintf("%v", d))
	}
}

// ToInterface chuyển Value về dạng interface{} để lưu vào MongoDB hoặc serialize JSON.
// Sentinel được render thành marker string tương ứng.
func (v Value) ToInterface() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.boolVal
	case KindNumber:
		return v.numVal
	case KindString:
		return v.strVal
	case KindPreviousValue:
		return previousValueMarker
	case KindRemovedField:
		return removedFieldMarker
	case KindList:
		items := make([]interface{}, 0, len(v.listVal))
		for _, item := range v.listVal {
			items = append(items, item.ToInterface())
		}
		return items
	case KindMap:
		m := make(map[string]interface{}, len(v.mapVal))
		for k, item := range v.mapVal {
			m[k] = item.ToInterface()
		}
		return m
	default:
		return nil
	}
}

// CanonicalJSON serialize Value thành JSON với map keys được sort đệ quy.
// Output ổn định: hai Value bằng nhau luôn cho cùng một chuỗi byte.
// Dùng bởi integrity hasher.
func (v Value) CanonicalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, common.NewError(common.ErrCodeAuditSerialize, "Không thể serialize trạng thái document", common.StatusInternalServerError, err)
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.boolVal {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(strconv.FormatFloat(v.numVal, 'g', -1, 64))
	case KindString, KindPreviousValue, KindRemovedField:
		s := v.strVal
		if v.kind == KindPreviousValue {
			s = previousValueMarker
		} else if v.kind == KindRemovedField {
			s = removedFieldMarker
		}
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.listVal {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		keys := make([]string, 0, len(v.mapVal))
		for k := range v.mapVal {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyData, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyData)
			buf.WriteByte(':')
			if err := writeCanonical(buf, v.mapVal[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value kind: %d", v.kind)
	}
	return nil
}
