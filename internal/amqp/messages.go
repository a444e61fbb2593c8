package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReminderNotice carries one outbound notification through the queue. The
// notify worker delivers the body to the user over chat.
type ReminderNotice struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReminderNotice(userID, body string) *ReminderNotice {
	return &ReminderNotice{
		ID:        uuid.NewString(),
		UserID:    userID,
		Body:      body,
		Timestamp: time.Now(),
	}
}

func (m *ReminderNotice) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderNoticeFromJSON(data []byte) (*ReminderNotice, error) {
	var msg ReminderNotice
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
