package domain

import "time"

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "PENDING"
	AppointmentConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

const DefaultAppointmentMinutes = 60

type Appointment struct {
	ID           string            `json:"id" bson:"_id"`
	UserID       string            `json:"user_id" bson:"user_id"`
	SpecialistID string            `json:"specialist_id" bson:"specialist_id"`
	Date         time.Time         `json:"date" bson:"date"`
	Duration     int               `json:"duration" bson:"duration"`
	Notes        string            `json:"notes,omitempty" bson:"notes,omitempty"`
	Status       AppointmentStatus `json:"status" bson:"status"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
}
