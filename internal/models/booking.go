package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingReviewed BookingStatus = "reviewed"
	BookingApproved BookingStatus = "approved"
	BookingDeclined BookingStatus = "declined"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingReviewed, BookingApproved, BookingDeclined:
		return true
	}
	return false
}

type AccommodationBooking struct {
	bun.BaseModel `bun:"table:accommodation_bookings"`

	ID              string        `bun:"id,pk" json:"id"`
	Reference       string        `bun:"reference,unique,notnull" json:"reference"`
	FullName        string        `bun:"full_name,notnull" json:"full_name"`
	Email           string        `bun:"email,notnull" json:"email"`
	Phone           string        `bun:"phone,notnull" json:"phone"`
	IDNumber        string        `bun:"id_number" json:"id_number,omitempty"`
	Gender          string        `bun:"gender" json:"gender,omitempty"`
	Institution     string        `bun:"institution,notnull" json:"institution"`
	CourseOfStudy   string        `bun:"course_of_study" json:"course_of_study,omitempty"`
	YearOfStudy     string        `bun:"year_of_study" json:"year_of_study,omitempty"`
	FundingType     string        `bun:"funding_type,notnull" json:"funding_type"`
	PreferredArea   string        `bun:"preferred_area" json:"preferred_area,omitempty"`
	MoveInDate      string        `bun:"move_in_date" json:"move_in_date,omitempty"`
	GuardianName    string        `bun:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone   string        `bun:"guardian_phone" json:"guardian_phone,omitempty"`
	AdditionalNotes string        `bun:"additional_notes" json:"additional_notes,omitempty"`
	Status          BookingStatus `bun:"status,notnull" json:"status"`
	ReviewerNote    string        `bun:"reviewer_note" json:"reviewer_note,omitempty"`
	CreatedAt       time.Time     `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,notnull" json:"updated_at"`
}

type BookingRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	IDNumber        string `json:"id_number,omitempty"`
	Gender          string `json:"gender,omitempty"`
	Institution     string `json:"institution"`
	CourseOfStudy   string `json:"course_of_study,omitempty"`
	YearOfStudy     string `json:"year_of_study,omitempty"`
	FundingType     string `json:"funding_type"`
	PreferredArea   string `json:"preferred_area,omitempty"`
	MoveInDate      string `json:"move_in_date,omitempty"`
	GuardianName    string `json:"guardian_name,omitempty"`
	GuardianPhone   string `json:"guardian_phone,omitempty"`
	AdditionalNotes string `json:"additional_notes,omitempty"`
}
