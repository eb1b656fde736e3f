package myteam

import (
	"encoding/json"
)

// EventTypeNewMessage is the only event type the listener dispatches.
const EventTypeNewMessage = "newMessage"

// Chat identifies where a message was posted.
type Chat struct {
	ChatID string `json:"chatId"`
	Type   string `json:"type"`
	Title  string `json:"title,omitempty"`
}

// Author is the sender of a message.
type Author struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	UserID    string `json:"userId"`
}

// MessagePayload is the body of a newMessage event.
type MessagePayload struct {
	Chat      Chat   `json:"chat"`
	From      Author `json:"from"`
	MsgID     string `json:"msgId"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Event is one decoded bot event.
type Event struct {
	EventID int64          `json:"eventId"`
	Type    string         `json:"type"`
	Payload MessagePayload `json:"payload"`
}

// Batch is the result of one poll.
type Batch struct {
	Events      []Event
	LastEventID int64 // Highest event id seen, including events that failed to decode.
}

type apiResponse struct {
	OK          bool              `json:"ok"`
	Description string            `json:"description,omitempty"`
	Events      []json.RawMessage `json:"events,omitempty"`
}

// decodeEvents keeps every event that decodes and skips the rest.
func decodeEvents(raw []json.RawMessage, lastEventID int64) Batch {
	batch := Batch{LastEventID: lastEventID}
	for _, item := range raw {
		var head struct {
			EventID int64 `json:"eventId"`
		}
		if errHead := json.Unmarshal(item, &head); errHead == nil && head.EventID > batch.LastEventID {
			batch.LastEventID = head.EventID
		}
		var event Event
		if errEvent := json.Unmarshal(item, &event); errEvent != nil {
			continue
		}
		batch.Events = append(batch.Events, event)
	}
	return batch
}
