package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tanush-em/ERP/core/audit"
	"github.com/tanush-em/ERP/core/document"
	"github.com/tanush-em/ERP/core/logger"
)

// Backoff khi change stream bị ngắt: bắt đầu 5s, nhân đôi tới tối đa 60s
const (
	reconnectBaseDelay = 5 * time.Second
	reconnectMaxDelay  = 60 * time.Second
)

// CollectionStatus trạng thái theo dõi của một collection
type CollectionStatus struct {
	Collection  string `json:"collection"`
	Active      bool   `json:"active"`
	LastEventAt int64  `json:"lastEventAt"` // UnixMilli, 0 nếu chưa có event
	Reconnects  int64  `json:"reconnects"`
	LastError   string `json:"lastError,omitempty"`
}

// Watcher mở change stream trên từng collection được cấu hình, tái tạo
// before-state, ghi audit trail và phát ChangeEvent lên bus.
type Watcher struct {
	db          *mongo.Database
	collections []string
	bus         *Bus
	auditSvc    *audit.Service
	log         *logrus.Logger

	mu       sync.RWMutex
	statuses map[string]*CollectionStatus
	failures []int64 // UnixMilli của các lần mất kết nối stream

	wg sync.WaitGroup
}

// NewWatcher tạo mới Watcher theo dõi danh sách collection trên database
func NewWatcher(db *mongo.Database, collections []string, bus *Bus, auditSvc *audit.Service) *Watcher {
	statuses := make(map[string]*CollectionStatus, len(collections))
	for _, name := range collections {
		statuses[name] = &CollectionStatus{Collection: name}
	}
	return &Watcher{
		db:          db,
		collections: collections,
		bus:         bus,
		auditSvc:    auditSvc,
		log:         logger.GetAppLogger(),
		statuses:    statuses,
	}
}

// Bus trả về event bus của watcher
func (w *Watcher) Bus() *Bus {
	return w.bus
}

// Start mở một goroutine theo dõi cho mỗi collection. Trả về ngay,
// các stream chạy tới khi ctx bị cancel.
func (w *Watcher) Start(ctx context.Context) {
	w.log.WithField("collections", len(w.collections)).Info("🔄 [WATCHER] Starting Mutation Watcher...")
	for _, name := range w.collections {
		w.wg.Add(1)
		go func(collection string) {
			defer w.wg.Done()
			w.watchLoop(ctx, collection)
		}(name)
	}
}

// Wait chờ toàn bộ watch loop kết thúc (sau khi ctx bị cancel)
func (w *Watcher) Wait() {
	w.wg.Wait()
}

// Status trả về snapshot trạng thái theo dõi của toàn bộ collection
func (w *Watcher) Status() []CollectionStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]CollectionStatus, 0, len(w.statuses))
	for _, name := range w.collections {
		out = append(out, *w.statuses[name])
	}
	return out
}

// ConnectionFailuresSince đếm số lần stream bị ngắt kể từ một thời điểm
func (w *Watcher) ConnectionFailuresSince(since int64) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	count := 0
	for _, ts := range w.failures {
		if ts >= since {
			count++
		}
	}
	return count
}

// streamEvent là shape của document nhận từ change stream
type streamEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID interface{} `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument      bson.M `bson:"fullDocument"`
	UpdateDescription struct {
		UpdatedFields bson.M   `bson:"updatedFields"`
		RemovedFields []string `bson:"removedFields"`
	} `bson:"updateDescription"`
	ClusterTime primitive.Timestamp `bson:"clusterTime"`
}

// watchLoop duy trì change stream trên một collection với backoff và resume token
func (w *Watcher) watchLoop(ctx context.Context, collection string) {
	log := w.log.WithFields(logrus.Fields{"module": "watcher", "collection": collection})

	var resumeToken bson.Raw
	delay := reconnectBaseDelay

	for {
		if ctx.Err() != nil {
			w.setActive(collection, false, "")
			return
		}

		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{
				"operationType": bson.M{"$in": []string{"insert", "update", "replace", "delete"}},
			}}},
		}
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		if resumeToken != nil {
			opts = opts.SetResumeAfter(resumeToken)
		}

		stream, err := w.db.Collection(collection).Watch(ctx, pipeline, opts)
		if err != nil {
			w.recordFailure(collection, err)
			log.WithError(err).Warnf("🔄 [WATCHER] Không mở được change stream, thử lại sau %s", delay)
			// Resume token có thể đã hết hạn khỏi oplog
			resumeToken = nil
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		w.setActive(collection, true, "")
		delay = reconnectBaseDelay
		log.Info("🔄 [WATCHER] Change stream đang hoạt động")

		for stream.Next(ctx) {
			resumeToken = stream.ResumeToken()
			var event streamEvent
			if err := stream.Decode(&event); err != nil {
				log.WithError(err).Error("🔄 [WATCHER] Không decode được change event")
				continue
			}
			w.handleEvent(ctx, collection, event)
		}

		streamErr := stream.Err()
		_ = stream.Close(context.Background())

		if ctx.Err() != nil {
			w.setActive(collection, false, "")
			log.Info("🔄 [WATCHER] Change stream stopped")
			return
		}

		w.recordFailure(collection, streamErr)
		log.WithError(streamErr).Warnf("🔄 [WATCHER] Change stream bị ngắt, kết nối lại sau %s", delay)
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = nextDelay(delay)
	}
}

// handleEvent chuyển một stream event thành ChangeEvent: map operation,
// tái tạo before-state, ghi audit và phát lên bus
func (w *Watcher) handleEvent(ctx context.Context, collection string, event streamEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("panic", r).Error("🔄 [WATCHER] Panic khi xử lý change event")
		}
	}()

	entityID := extractEntityID(event.DocumentKey.ID)
	if entityID == "" {
		return
	}

	var operation string
	after := document.Null()
	before := document.Null()

	switch event.OperationType {
	case "insert":
		operation = audit.OperationCreate
		after = document.FromInterface(event.FullDocument)
	case "update":
		operation = audit.OperationUpdate
		after = document.FromInterface(event.FullDocument)
		before = ReconstructBefore(after, event.UpdateDescription.UpdatedFields, event.UpdateDescription.RemovedFields)
	case "replace":
		operation = audit.OperationUpdate
		after = document.FromInterface(event.FullDocument)
		before = w.lastKnownState(ctx, collection, entityID)
	case "delete":
		operation = audit.OperationDelete
		before = w.lastKnownState(ctx, collection, entityID)
	default:
		return
	}

	timestamp := time.Now().UnixMilli()
	if event.ClusterTime.T > 0 {
		timestamp = int64(event.ClusterTime.T) * 1000
	}

	w.markEvent(collection, timestamp)

	if _, err := w.auditSvc.LogChange(ctx, collection, entityID, operation, "", before, after, timestamp); err != nil {
		w.log.WithError(err).WithFields(logrus.Fields{
			"collection": collection,
			"entityId":   entityID,
		}).Error("🔄 [WATCHER] Không ghi được change record")
	}

	w.bus.Emit(ctx, ChangeEvent{
		Collection: collection,
		EntityID:   entityID,
		Operation:  operation,
		Before:     before,
		After:      after,
		Timestamp:  timestamp,
	})
}

// lastKnownState lấy afterState của change record gần nhất cho entity,
// dùng làm before-state khi change stream không cung cấp (delete/replace)
func (w *Watcher) lastKnownState(ctx context.Context, collection, entityID string) document.Value {
	history, err := w.auditSvc.EntityHistory(ctx, collection, entityID, 1)
	if err != nil || len(history) == 0 {
		return document.Null()
	}
	return document.FromInterface(history[0].AfterState)
}

// extractEntityID chuyển documentKey._id về hex string
func extractEntityID(id interface{}) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		if v == nil {
			return ""
		}
		value := document.FromInterface(v)
		if value.Kind() == document.KindString {
			return value.StringValue()
		}
		return ""
	}
}

func (w *Watcher) setActive(collection string, active bool, lastError string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	status := w.statuses[collection]
	status.Active = active
	if lastError != "" {
		status.LastError = lastError
	}
}

func (w *Watcher) markEvent(collection string, timestamp int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statuses[collection].LastEventAt = timestamp
}

func (w *Watcher) recordFailure(collection string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	status := w.statuses[collection]
	status.Active = false
	status.Reconnects++
	if err != nil {
		status.LastError = err.Error()
	}
	now := time.Now().UnixMilli()
	w.failures = append(w.failures, now)
	// Giữ lại tối đa 1 giờ lịch sử failure
	cutoff := now - int64(time.Hour/time.Millisecond)
	trimmed := w.failures[:0]
	for _, ts := range w.failures {
		if ts >= cutoff {
			trimmed = append(trimmed, ts)
		}
	}
	w.failures = trimmed
}

// sleepCtx ngủ một khoảng thời gian, trả về false nếu ctx bị cancel trước
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > reconnectMaxDelay {
		next = reconnectMaxDelay
	}
	return next
}
