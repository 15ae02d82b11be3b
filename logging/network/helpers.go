package network

import (
	"context"

	"skirmish/logging"
)

const (
	// EventProtocolViolation is emitted when a session is dropped for malformed or misdirected frames.
	EventProtocolViolation logging.EventType = "network.protocol_violation"
	// EventQueueOverflow is emitted when a session's outgoing queue fills up.
	EventQueueOverflow logging.EventType = "network.queue_overflow"
	// EventDatagramDiscarded is emitted when an unreliable datagram is dropped.
	EventDatagramDiscarded logging.EventType = "network.datagram_discarded"
)

// ViolationPayload describes why a connection was terminated.
type ViolationPayload struct {
	Error  string `json:"error" msgpack:"error"`
	Remote string `json:"remote,omitempty" msgpack:"remote,omitempty"`
}

type QueueOverflowPayload struct {
	Capacity int `json:"capacity" msgpack:"capacity"`
}

// DatagramPayload describes a discarded datagram.
type DatagramPayload struct {
	Size   int    `json:"size" msgpack:"size"`
	Remote string `json:"remote" msgpack:"remote"`
	Reason string `json:"reason" msgpack:"reason"`
}

// ProtocolViolation publishes a warning event when a session is terminated.
func ProtocolViolation(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ViolationPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventProtocolViolation,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// QueueOverflow publishes a warning event when a slow peer is cut off.
func QueueOverflow(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload QueueOverflowPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventQueueOverflow,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// DatagramDiscarded publishes a debug event for a dropped datagram.
func DatagramDiscarded(ctx context.Context, pub logging.Publisher, tick uint64, payload DatagramPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDatagramDiscarded,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}
