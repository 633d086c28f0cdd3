package models

import (
	"time"

	appmodels "minderdesk/internal/application/models"
	id "minderdesk/pkg/domain"
)

// Status is the employment state.
type Status string

const (
	StatusActive     Status = "active"
	StatusOnLeave    Status = "on_leave"
	StatusTerminated Status = "terminated"
)

// Employee is a registered childminder, always derived from an approved
// application. ApplicationID links back for the deletion cascade.
type Employee struct {
	ID            id.EmployeeID    `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	FirstName     string           `json:"first_name"`
	LastName      string           `json:"last_name"`
	Email         string           `json:"email"`
	Phone         string           `json:"phone,omitempty"`
	Status        Status           `json:"status"`
	StartDate     time.Time        `json:"start_date"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewFromApplication builds the active employee record for an approved
// application.
func NewFromApplication(a *appmodels.Application, now time.Time) *Employee {
	return &Employee{
		ID:            id.NewEmployeeID(),
		ApplicationID: a.ID,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Email:         a.Email,
		Phone:         a.Phone,
		Status:        StatusActive,
		StartDate:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}
