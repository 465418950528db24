package vars

import (
	"sync/atomic"
	"unsafe"

	"gatepass/model"
)

// eventsPtr holds a pointer to the current open-event snapshot keyed by
// event id. This allows lock-free reads with atomic updates; the snapshot
// backs the public event endpoint so form rendering never hits the DB.
var eventsPtr unsafe.Pointer

// GetEvents returns the current snapshot. Safe for concurrent access.
func GetEvents() map[int64]model.EventConfig {
	ptr := atomic.LoadPointer(&eventsPtr)
	if ptr == nil {
		return nil
	}
	return *(*map[int64]model.EventConfig)(ptr)
}

// GetEvent looks up one event in the snapshot.
func GetEvent(id int64) (model.EventConfig, bool) {
	ev, ok := GetEvents()[id]
	return ev, ok
}

// SetEvents atomically replaces the snapshot. It copies the input so the
// caller may keep mutating its own map.
func SetEvents(events []model.EventConfig) {
	var ptr unsafe.Pointer

	if len(events) > 0 {
		snapshot := make(map[int64]model.EventConfig, len(events))
		for _, ev := range events {
			snapshot[ev.ID] = ev
		}
		ptr = unsafe.Pointer(&snapshot)
	}

	atomic.StorePointer(&eventsPtr, ptr)
}

func init() {
	atomic.StorePointer(&eventsPtr, nil)
}
