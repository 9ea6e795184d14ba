// Package messaging defines the broadcasting contracts used by the pipeline.
package messaging

// Broadcaster is the outbound interface the pipeline calls instead of
// reaching into a global emitter. Deliveries are best-effort per recipient;
// a slow or dead client never blocks ingestion.
type Broadcaster interface {
	// BroadcastToObservers fans an event out to every connected observer.
	BroadcastToObservers(event string, data any)
	// SendToChannel delivers an event to one specific channel only.
	SendToChannel(channelID, event string, data any)
}
