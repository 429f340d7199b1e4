package model

import (
	"time"
)

type EventType string

const (
	EventBookReserved EventType = "book.reserved"
	EventBookReturned EventType = "book.returned"
)

type ReservationEvent struct {
	Type          EventType `json:"type"`
	BookID        string    `json:"bookId"`
	UserID        string    `json:"userId"`
	ReservationID string    `json:"reservationId"`
	Timestamp     time.Time `json:"timestamp"`
}

type CompensationKind string

const (
	// flip a book back to available after its reservation row could not be written
	CompensateReleaseBook CompensationKind = "release-book"
	// flip a book back to reserved after its reservation could not be closed
	CompensateHoldBook CompensationKind = "hold-book"
	// drop a reservation row whose book flag could not be set
	CompensateRemoveReservation CompensationKind = "remove-reservation"
	// reopen a reservation whose book flag could not be cleared
	CompensateReopenReservation CompensationKind = "reopen-reservation"
)

// Compensation is a corrective write parked for later replay when it failed inline.
type Compensation struct {
	Kind          CompensationKind `json:"kind"`
	BookID        string           `json:"bookId,omitempty"`
	ReservationID string           `json:"reservationId,omitempty"`
	Cause         string           `json:"cause,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}
