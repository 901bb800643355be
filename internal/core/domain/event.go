package domain

import (
	"time"
)

type DashboardEvent interface {
	OccurredAt() time.Time
}

type DashboardEventMixIn struct {
	At time.Time
}

func (e DashboardEventMixIn) OccurredAt() time.Time {
	return e.At
}

func Now() DashboardEventMixIn {
	return DashboardEventMixIn{At: time.Now()}
}

type DevicesSnapshotEvent struct {
	DashboardEventMixIn
	Devices []DeviceRecord
}

type EnergySnapshotEvent struct {
	DashboardEventMixIn
	Energy EnergyReport
}

type CardMountedEvent struct {
	DashboardEventMixIn
	Card CardSnapshot
}

type CardUnmountedEvent struct {
	DashboardEventMixIn
	DeviceId int
}

type CardUpdatedEvent struct {
	DashboardEventMixIn
	Record DeviceRecord
	View   ViewState
	Card   CardSnapshot
}

type CardPatchEvent struct {
	DashboardEventMixIn
	Patch CardPatch
}

type NotificationEvent struct {
	DashboardEventMixIn
	Notification Notification
}

type BridgeStateUpdateEvent struct {
	DashboardEventMixIn
	Online bool
}

type NotificationLevel string

const (
	NOTIFICATION_ERROR   NotificationLevel = "error"
	NOTIFICATION_SUCCESS NotificationLevel = "success"
)

type Notification struct {
	Id        int64             `json:"id"`
	Level     NotificationLevel `json:"level"`
	DeviceId  int               `json:"device_id,omitempty"`
	Action    string            `json:"action,omitempty"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

// ensure interface compliance
var _ DashboardEvent = (*CardUpdatedEvent)(nil)
