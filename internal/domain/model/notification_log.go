package model

import "time"

type NotificationLogStatus string

const (
	NotificationLogStatusReceived     NotificationLogStatus = "received"
	NotificationLogStatusHandled      NotificationLogStatus = "handled"
	NotificationLogStatusHandleFailed NotificationLogStatus = "handle_failed"
)

// NotificationLog keeps every inbound webhook for audit and replay.
type NotificationLog struct {
	ID            string
	Provider      string
	InstructionID string
	TraceID       string
	GatewayTxnID  string
	Data          InboundNotification
	Verdict       string
	Result        string
	Status        NotificationLogStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
