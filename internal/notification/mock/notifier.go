package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/notification/types"
)

// NotificationRecord stores a sent notification for inspection
type NotificationRecord struct {
	ID        int64     `json:"id"`
	EventType string    `json:"eventType"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

// Notifier is an in-memory notification provider. It logs all notifications
// and keeps the most recent ones.
type Notifier struct {
	name   string
	logger zerolog.Logger
	err    error

	mu         sync.RWMutex
	records    []NotificationRecord
	nextID     int64
	maxRecords int
}

// New creates a new mock notifier
func New(name string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		name:       name,
		logger:     logger.With().Str("notifier", "mock").Str("name", name).Logger(),
		records:    make([]NotificationRecord, 0),
		nextID:     1,
		maxRecords: 100,
	}
}

// FailWith makes every later send return err without recording.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *Notifier) Type() types.NotifierType {
	return types.NotifierMock
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	return n.recordNotification("test", "Test Notification", "This is a test notification from the mock notifier", nil)
}

func (n *Notifier) OnRunCompleted(ctx context.Context, event types.RunEvent) error {
	title := "Cleanup Finished"
	if event.DryRun {
		title = "Cleanup Finished (dry run)"
	}
	message := fmt.Sprintf("%d deleted, %d bytes freed, %d leaving soon", len(event.Deleted), event.BytesFreed, len(event.Preview))
	return n.recordNotification(string(types.EventRunCompleted), title, message, event)
}

func (n *Notifier) OnLeavingSoon(ctx context.Context, event types.LeavingSoonEvent) error {
	message := fmt.Sprintf("%d items", len(event.Items))
	if event.DeletionDate != nil {
		message += " on " + event.DeletionDate.Format(time.DateOnly)
	}
	return n.recordNotification(string(types.EventLeavingSoon), "Leaving Soon", message, event)
}

// GetRecords returns all stored notification records
func (n *Notifier) GetRecords() []NotificationRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()

	records := make([]NotificationRecord, len(n.records))
	copy(records, n.records)
	return records
}

// Clear removes all stored notification records
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.records = make([]NotificationRecord, 0)
	n.nextID = 1
}

func (n *Notifier) recordNotification(eventType, title, message string, data any) error {
	n.mu.Lock()
	if n.err != nil {
		err := n.err
		n.mu.Unlock()
		return err
	}
	record := NotificationRecord{
		ID:        n.nextID,
		EventType: eventType,
		Title:     title,
		Message:   message,
		Data:      data,
		SentAt:    time.Now(),
	}
	n.nextID++

	// Trim old records if we exceed max
	if len(n.records) >= n.maxRecords {
		n.records = n.records[1:]
	}
	n.records = append(n.records, record)
	n.mu.Unlock()

	n.logger.Info().
		Str("eventType", eventType).
		Str("title", title).
		Str("message", message).
		Msg("Mock notification sent")
	return nil
}
