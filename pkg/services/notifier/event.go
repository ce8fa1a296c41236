package notifier

import (
	"slices"
)

// PendingEvent is an event occurrence queued for a session. Single events
// carry exactly one id, batch ones (transactions) carry a list. It's never
// modified after creation.
type PendingEvent struct {
	Name   string
	IDs    []uint64
	Single bool
}

func singleEvent(name string, id uint64) PendingEvent {
	return PendingEvent{Name: name, IDs: []uint64{id}, Single: true}
}

func batchEvent(name string, ids []uint64) PendingEvent {
	return PendingEvent{Name: name, IDs: slices.Clone(ids)}
}
