package models

import (
	"encoding/json"
	"time"
)

// InboundEvent is the normalized event delivered by the inbound
// gateway. MessageID is the transport's own identifier; it is stored
// on the message but deliberately not used for deduplication.
type InboundEvent struct {
	Sender      string          `json:"sender"`
	Chat        string          `json:"chat"`
	Type        MessageType     `json:"type"`
	Content     string          `json:"content,omitempty"`
	SendingTime *time.Time      `json:"sending_time,omitempty"`
	Media       string          `json:"media,omitempty"`
	MimeType    string          `json:"mimetype,omitempty"`
	MessageID   string          `json:"messageId,omitempty"`
	ContextInfo json.RawMessage `json:"contextInfo,omitempty"`
}

// EffectiveSendingTime returns the event's timestamp, defaulting to
// the given ingestion time when the gateway omitted it.
func (e *InboundEvent) EffectiveSendingTime(now time.Time) time.Time {
	if e.SendingTime != nil {
		return *e.SendingTime
	}
	return now
}

// RetryTask is the serializable description of a failed ingestion
// attempt awaiting re-execution. It carries the full event payload so
// a scheduler restart can replay it without captured closures.
type RetryTask struct {
	Key         string       `json:"key"`
	Event       InboundEvent `json:"event"`
	Attempt     int          `json:"attempt"`
	NextAttempt time.Time    `json:"nextAttempt"`
}

// LocationPayload is the structured sub-document carried as content
// for location events.
type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ContactPayload is the structured sub-document carried as content
// for contact-card events.
type ContactPayload struct {
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization,omitempty"`
}
