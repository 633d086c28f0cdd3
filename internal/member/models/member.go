package models

import (
	"time"

	"github.com/google/uuid"

	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
)

// DBSStatus tracks a member's Disclosure and Barring Service check.
type DBSStatus string

const (
	DBSNotRequested DBSStatus = "not_requested"
	DBSRequested    DBSStatus = "requested"
	DBSReceived     DBSStatus = "received"
	DBSExpired      DBSStatus = "expired"
)

// validTransitions lists the allowed dbs_status moves. received/expired
// can only be re-requested, never silently reverted.
var validTransitions = map[DBSStatus][]DBSStatus{
	DBSNotRequested: {DBSRequested},
	DBSRequested:    {DBSReceived, DBSExpired},
	DBSReceived:     {DBSExpired, DBSRequested},
	DBSExpired:      {DBSRequested},
}

func (s DBSStatus) CanTransitionTo(target DBSStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s DBSStatus) Valid() bool {
	switch s {
	case DBSNotRequested, DBSRequested, DBSReceived, DBSExpired:
		return true
	}
	return false
}

// Kind distinguishes the people tracked for compliance.
type Kind string

const (
	KindAdult     Kind = "adult"
	KindChild     Kind = "child"
	KindAssistant Kind = "assistant"
)

// ReminderEntry is one line of the append-only reminder history.
type ReminderEntry struct {
	Date      time.Time `json:"date"`
	Type      string    `json:"type"`
	Recipient string    `json:"recipient"`
	Success   bool      `json:"success"`
}

// Member is a tracked household adult/child or assistant subject to DBS
// and suitability checks.
//
// Invariants:
//   - Owner is exactly one of application/employee (enforced by stores)
//   - ReminderCount == len(ReminderHistory)
//   - Turning16NotificationSent moves false→true only, never back
//   - FormToken is single-use: cleared on form submission
//
// Version guards read-modify-write of the history log: stores reject an
// Update whose Version does not match the persisted row.
type Member struct {
	ID           id.MemberID `json:"id"`
	Owner        id.Owner    `json:"owner"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	DateOfBirth  time.Time   `json:"date_of_birth"`
	Relationship string      `json:"relationship"`
	Kind         Kind        `json:"kind"`
	Email        string      `json:"email,omitempty"`

	DBSStatus            DBSStatus  `json:"dbs_status"`
	DBSCertificateNumber string     `json:"dbs_certificate_number,omitempty"`
	DBSIssueDate         *time.Time `json:"dbs_issue_date,omitempty"`
	DBSRequestedDate     *time.Time `json:"dbs_requested_date,omitempty"`

	FormToken        string     `json:"-"`
	ResponseReceived bool       `json:"response_received"`
	ResponseDate     *time.Time `json:"response_date,omitempty"`

	ReminderCount             int             `json:"reminder_count"`
	ReminderHistory           []ReminderEntry `json:"reminder_history"`
	Turning16NotificationSent bool            `json:"turning_16_notification_sent"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMember constructs a member with a fresh form token and
// dbs_status = not_requested.
func NewMember(owner id.Owner, firstName, lastName string, dob time.Time, relationship string, kind Kind, email string, now time.Time) (*Member, error) {
	if err := owner.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, err.Error())
	}
	if firstName == "" || lastName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "member name is required")
	}
	if dob.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "date of birth is required")
	}
	if dob.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "date of birth cannot be in the future")
	}
	switch kind {
	case KindAdult, KindChild, KindAssistant:
	default:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid member kind")
	}

	return &Member{
		ID:          id.NewMemberID(),
		Owner:       owner,
		FirstName:   firstName,
		LastName:    lastName,
		DateOfBirth: dob.UTC(),

		Relationship: relationship,
		Kind:         kind,
		Email:        email,
		DBSStatus:    DBSNotRequested,
		FormToken:    uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (m *Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// SixteenthBirthday returns the date the member turns 16.
func (m *Member) SixteenthBirthday() time.Time {
	return m.DateOfBirth.AddDate(16, 0, 0)
}

// DaysUntil16 returns whole days from today until the 16th birthday,
// negative once passed. Both times are compared at midnight UTC so the
// result is stable across a day.
func (m *Member) DaysUntil16(now time.Time) int {
	today := midnightUTC(now)
	birthday := midnightUTC(m.SixteenthBirthday())
	return int(birthday.Sub(today).Hours() / 24)
}

func midnightUTC(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// CanRequestDBS checks the transition into requested.
func (m *Member) CanRequestDBS() error {
	if !m.DBSStatus.CanTransitionTo(DBSRequested) {
		return dErrors.New(dErrors.CodeInvariantViolation, "DBS check already requested")
	}
	return nil
}

// ApplyDBSRequest transitions to requested and rotates the form token so
// the emailed link is always live.
func (m *Member) ApplyDBSRequest(now time.Time) {
	m.DBSStatus = DBSRequested
	t := now
	m.DBSRequestedDate = &t
	m.FormToken = uuid.NewString()
	m.UpdatedAt = now
}

// ApplyTokenRotation issues a fresh form token for an already-requested
// check. DBSRequestedDate is left alone so a reminder never resets the
// overdue clock.
func (m *Member) ApplyTokenRotation(now time.Time) {
	m.FormToken = uuid.NewString()
	m.UpdatedAt = now
}

// ApplyFormSubmission records a household suitability form response.
// Members already holding a certificate move straight to received;
// everyone else stays at requested. The token is consumed.
func (m *Member) ApplyFormSubmission(hasCertificate bool, certificateNumber string, issueDate *time.Time, now time.Time) {
	m.ResponseReceived = true
	t := now
	m.ResponseDate = &t
	m.FormToken = ""
	if hasCertificate && m.DBSStatus.CanTransitionTo(DBSReceived) {
		m.DBSStatus = DBSReceived
		m.DBSCertificateNumber = certificateNumber
		m.DBSIssueDate = issueDate
	}
	m.UpdatedAt = now
}

// AppendReminder adds a history entry, keeping ReminderCount in lockstep.
func (m *Member) AppendReminder(entry ReminderEntry) {
	m.ReminderHistory = append(m.ReminderHistory, entry)
	m.ReminderCount = len(m.ReminderHistory)
}

// CopyForOwner clones the member under a new owner, preserving DBS state
// and reminder history. A live form token is rotated so the token unique
// constraint holds across copies.
func (m *Member) CopyForOwner(owner id.Owner, now time.Time) *Member {
	cp := *m
	cp.ID = id.NewMemberID()
	cp.Owner = owner
	cp.ReminderHistory = append([]ReminderEntry{}, m.ReminderHistory...)
	if m.DBSIssueDate != nil {
		t := *m.DBSIssueDate
		cp.DBSIssueDate = &t
	}
	if m.DBSRequestedDate != nil {
		t := *m.DBSRequestedDate
		cp.DBSRequestedDate = &t
	}
	if m.ResponseDate != nil {
		t := *m.ResponseDate
		cp.ResponseDate = &t
	}
	if m.FormToken != "" {
		cp.FormToken = uuid.NewString()
	}
	cp.Version = 0
	cp.CreatedAt = now
	cp.UpdatedAt = now
	return &cp
}

// CanMarkTurning16Notified guards the one-shot birthday notification flag.
func (m *Member) CanMarkTurning16Notified() error {
	if m.Turning16NotificationSent {
		return dErrors.New(dErrors.CodeInvariantViolation, "16th-birthday notification already sent")
	}
	return nil
}

// ApplyTurning16Notified sets the flag. Monotonic: there is no way back.
func (m *Member) ApplyTurning16Notified(now time.Time) {
	m.Turning16NotificationSent = true
	m.UpdatedAt = now
}
