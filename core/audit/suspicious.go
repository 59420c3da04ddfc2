// Package audit - các heuristic phát hiện hoạt động bất thường trên audit trail.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ngưỡng của các heuristic phát hiện bất thường
const (
	rapidChangeWindowMillis = int64(60_000) // cửa sổ 60s
	rapidChangeThreshold    = 5             // số thay đổi trên cùng entity trong cửa sổ
	bulkOperationThreshold  = 50            // số thao tác cùng loại của cùng user
)

// DetectSuspicious chạy toàn bộ heuristic trên một dải records. Hàm thuần.
//
// Các pattern được phát hiện:
//   - rapid_changes: một entity bị thay đổi quá nhanh (>= 5 lần trong 60s) -> medium
//   - hash_mismatch: hash lưu trữ không khớp hash tính lại -> high
//   - bulk_operation: một user lặp cùng một loại thao tác quá nhiều (>= 50) -> low
func DetectSuspicious(records []ChangeRecord) []SuspiciousFinding {
	findings := []SuspiciousFinding{}
	findings = append(findings, detectRapidChanges(records)...)
	findings = append(findings, detectHashMismatches(records)...)
	findings = append(findings, detectBulkOperations(records)...)
	return findings
}

// detectRapidChanges tìm các entity có >= rapidChangeThreshold thay đổi
// trong một cửa sổ trượt rapidChangeWindowMillis
func detectRapidChanges(records []ChangeRecord) []SuspiciousFinding {
	type entityKey struct {
		collection string
		entityID   string
	}
	byEntity := map[entityKey][]ChangeRecord{}
	for _, record := range records {
		key := entityKey{record.Collection, record.EntityID}
		byEntity[key] = append(byEntity[key], record)
	}

	findings := []SuspiciousFinding{}
	for key, group := range byEntity {
		if len(group) < rapidChangeThreshold {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Timestamp < group[j].Timestamp })

		// Cửa sổ trượt: tìm dải dài nhất nằm gọn trong 60s
		best := 0
		var bestIDs []primitive.ObjectID
		left := 0
		for right := range group {
			for group[right].Timestamp-group[left].Timestamp > rapidChangeWindowMillis {
				left++
			}
			size := right - left + 1
			if size > best {
				best = size
				bestIDs = bestIDs[:0]
				for _, r := range group[left : right+1] {
					bestIDs = append(bestIDs, r.ID)
				}
			}
		}
		if best >= rapidChangeThreshold {
			findings = append(findings, SuspiciousFinding{
				Type:        "rapid_changes",
				Severity:    SeverityMedium,
				Collection:  key.collection,
				EntityID:    key.entityID,
				Description: fmt.Sprintf("Entity bị thay đổi %d lần trong vòng 60 giây", best),
				RecordIDs:   bestIDs,
				Count:       best,
			})
		}
	}
	return findings
}

// detectHashMismatches trả về finding cho mỗi record có hash không khớp
func detectHashMismatches(records []ChangeRecord) []SuspiciousFinding {
	findings := []SuspiciousFinding{}
	for _, record := range records {
		ok, _, err := VerifyChangeHash(record)
		if err == nil && ok {
			continue
		}
		findings = append(findings, SuspiciousFinding{
			Type:        "hash_mismatch",
			Severity:    SeverityHigh,
			Collection:  record.Collection,
			EntityID:    record.EntityID,
			UserID:      record.UserID,
			Description: "Hash lưu trữ không khớp với hash tính lại, record có thể đã bị sửa đổi",
			RecordIDs:   []primitive.ObjectID{record.ID},
			Count:       1,
		})
	}
	return findings
}

// detectBulkOperations tìm user lặp cùng một loại thao tác quá nhiều lần
func detectBulkOperations(records []ChangeRecord) []SuspiciousFinding {
	type opKey struct {
		userID    string
		operation string
	}
	counts := map[opKey]int{}
	for _, record := range records {
		if record.UserID == "" {
			continue
		}
		counts[opKey{record.UserID, record.Operation}]++
	}

	findings := []SuspiciousFinding{}
	for key, count := range counts {
		if count < bulkOperationThreshold {
			continue
		}
		findings = append(findings, SuspiciousFinding{
			Type:        "bulk_operation",
			Severity:    SeverityLow,
			UserID:      key.userID,
			Description: fmt.Sprintf("User thực hiện %d thao tác %s trong khoảng thời gian kiểm tra", count, key.operation),
			Count:       count,
		})
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Count > findings[j].Count })
	return findings
}

// DetectSuspiciousActivity chạy heuristic trên records trong khoảng thời gian
func (s *Service) DetectSuspiciousActivity(ctx context.Context, from, to int64) ([]SuspiciousFinding, error) {
	if to == 0 {
		to = time.Now().UnixMilli()
	}
	records, err := s.store.FindInRange(ctx, from, to, "")
	if err != nil {
		return nil, err
	}
	return DetectSuspicious(records), nil
}

// BuildComplianceReport tổng hợp báo cáo tuân thủ từ một dải records. Hàm thuần.
func BuildComplianceReport(from, to int64, records []ChangeRecord) ComplianceReport {
	report := ComplianceReport{
		From:                from,
		To:                  to,
		TotalChanges:        len(records),
		ChangesByOperation:  map[string]int{},
		ChangesByCollection: map[string]int{},
		ChangesByUser:       map[string]int{},
		GeneratedAt:         time.Now().UnixMilli(),
	}
	for _, record := range records {
		report.ChangesByOperation[record.Operation]++
		report.ChangesByCollection[record.Collection]++
		if record.UserID != "" {
			report.ChangesByUser[record.UserID]++
		}
		if record.Operation == OperationRollback {
			report.RollbackCount++
		}
	}
	report.IntegrityViolations = ValidateChain(records).Violations
	report.SuspiciousFindings = DetectSuspicious(records)
	return report
}

// GenerateComplianceReport tạo báo cáo tuân thủ cho một khoảng thời gian
func (s *Service) GenerateComplianceReport(ctx context.Context, from, to int64) (*ComplianceReport, error) {
	if to == 0 {
		to = time.Now().UnixMilli()
	}
	records, err := s.store.FindInRange(ctx, from, to, "")
	if err != nil {
		return nil, err
	}
	report := BuildComplianceReport(from, to, records)
	return &report, nil
}
