package models

import (
	"strings"
	"time"

	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
)

// Status is the application review state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Address is a UK postal address captured at intake.
type Address struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	Town     string `json:"town"`
	Postcode string `json:"postcode"`
}

// Qualification is one childcare qualification held by the applicant.
type Qualification struct {
	Title    string `json:"title"`
	Awarded  int    `json:"awarded_year,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Employment is one entry in the applicant's employment history.
type Employment struct {
	Employer string     `json:"employer"`
	Role     string     `json:"role"`
	From     time.Time  `json:"from"`
	To       *time.Time `json:"to,omitempty"`
}

// Declarations captures the suitability self-declarations from the final
// form section.
type Declarations struct {
	HasConvictions        bool `json:"has_convictions"`
	DisqualifiedFromCare  bool `json:"disqualified_from_care"`
	SocialServicesContact bool `json:"social_services_contact"`
	InformationIsAccurate bool `json:"information_is_accurate"`
}

// Application is one childminder registration.
//
// Invariants:
//   - Status transitions: pending→approved, pending→rejected, and
//     approved→pending only via the employee-deletion cascade
//   - Status is mutated only through admin operations
type Application struct {
	ID          id.ApplicationID `json:"id"`
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	Email       string           `json:"email"`
	Phone       string           `json:"phone,omitempty"`
	DateOfBirth time.Time        `json:"date_of_birth"`
	Address     Address          `json:"address"`

	PremisesType      string          `json:"premises_type,omitempty"`
	Qualifications    []Qualification `json:"qualifications,omitempty"`
	EmploymentHistory []Employment    `json:"employment_history,omitempty"`
	Declarations      Declarations    `json:"declarations"`

	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  id.AdminID `json:"reviewed_by,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// NewApplication validates intake fields and constructs a pending
// application.
func NewApplication(firstName, lastName, email string, dob time.Time, addr Address, now time.Time) (*Application, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = strings.TrimSpace(email)
	if firstName == "" || lastName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "applicant name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "a valid email address is required")
	}
	if dob.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "date of birth is required")
	}
	if addr.Postcode == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "address postcode is required")
	}

	return &Application{
		ID:          id.NewApplicationID(),
		FirstName:   firstName,
		LastName:    lastName,
		Email:       email,
		DateOfBirth: dob.UTC(),
		Address:     addr,
		Status:      StatusPending,
		SubmittedAt: now,
	}, nil
}

func (a *Application) FullName() string {
	return a.FirstName + " " + a.LastName
}

// CanApprove checks the pending→approved transition.
func (a *Application) CanApprove() error {
	if a.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "only pending applications can be approved")
	}
	return nil
}

// ApplyApproval marks the application approved by the given admin.
func (a *Application) ApplyApproval(reviewer id.AdminID, now time.Time) {
	a.Status = StatusApproved
	a.ReviewedAt = &now
	a.ReviewedBy = reviewer
}

// CanReject checks the pending→rejected transition.
func (a *Application) CanReject() error {
	if a.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "only pending applications can be rejected")
	}
	return nil
}

// ApplyRejection marks the application rejected.
func (a *Application) ApplyRejection(reviewer id.AdminID, notes string, now time.Time) {
	a.Status = StatusRejected
	a.ReviewedAt = &now
	a.ReviewedBy = reviewer
	if notes != "" {
		a.Notes = notes
	}
}

// ApplyReset returns an approved application to pending. Only the
// employee-deletion cascade uses this.
func (a *Application) ApplyReset() {
	a.Status = StatusPending
	a.ReviewedAt = nil
	a.ReviewedBy = id.AdminID{}
}
