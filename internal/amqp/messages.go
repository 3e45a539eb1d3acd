package amqp

import (
	"encoding/json"
	"time"
)

// RecurringAppliedMessage is published after a recurring pass created
// transactions. Consumers reload the ledger for the details.
type RecurringAppliedMessage struct {
	Today       string    `json:"today"`
	Created     int       `json:"created"`
	TemplateIDs []string  `json:"templateIds"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewRecurringAppliedMessage(today string, created int, templateIDs []string) *RecurringAppliedMessage {
	if templateIDs == nil {
		templateIDs = []string{}
	}
	return &RecurringAppliedMessage{
		Today:       today,
		Created:     created,
		TemplateIDs: templateIDs,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecurringAppliedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecurringAppliedMessageFromJSON(data []byte) (*RecurringAppliedMessage, error) {
	var msg RecurringAppliedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
