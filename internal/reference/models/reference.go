package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
)

// Status is the reference request state. Completed is terminal.
type Status string

const (
	StatusSent      Status = "sent"
	StatusCompleted Status = "completed"
)

// ResponseData is the referee's structured answer.
type ResponseData struct {
	Relationship   string `json:"relationship"`
	HowLongKnown   string `json:"how_long_known"`
	WouldRecommend bool   `json:"would_recommend"`
	// SuitabilityConcerns is the childcare-suitability block. Required for
	// childcare references, even when the answer is "none".
	SuitabilityConcerns string `json:"suitability_concerns,omitempty"`
	Comments            string `json:"comments,omitempty"`
}

// ReferenceRequest is one token-gated request for a character or
// childcare reference.
//
// Invariants:
//   - ReferenceNumber is 1 or 2, unique per owner (enforced by stores)
//   - Status moves sent→completed exactly once
//   - FormToken is single-use: cleared when the response lands
type ReferenceRequest struct {
	ID              id.ReferenceID `json:"id"`
	Owner           id.Owner       `json:"owner"`
	ReferenceNumber int            `json:"reference_number"`

	RefereeName          string `json:"referee_name"`
	RefereeEmail         string `json:"referee_email"`
	RefereeRelationship  string `json:"referee_relationship,omitempty"`
	IsChildcareReference bool   `json:"is_childcare_reference"`

	FormToken string        `json:"-"`
	Status    Status        `json:"status"`
	Response  *ResponseData `json:"response,omitempty"`

	SentDate             time.Time  `json:"sent_date"`
	ResponseReceivedDate *time.Time `json:"response_received_date,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewRequest validates and constructs a sent reference request with a
// fresh form token.
func NewRequest(owner id.Owner, number int, refereeName, refereeEmail, refereeRelationship string, isChildcare bool, now time.Time) (*ReferenceRequest, error) {
	if err := owner.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, err.Error())
	}
	if number != 1 && number != 2 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reference number must be 1 or 2")
	}
	refereeName = strings.TrimSpace(refereeName)
	refereeEmail = strings.TrimSpace(refereeEmail)
	if refereeName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "referee name is required")
	}
	if refereeEmail == "" || !strings.Contains(refereeEmail, "@") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "a valid referee email is required")
	}

	return &ReferenceRequest{
		ID:                   id.NewReferenceID(),
		Owner:                owner,
		ReferenceNumber:      number,
		RefereeName:          refereeName,
		RefereeEmail:         refereeEmail,
		RefereeRelationship:  strings.TrimSpace(refereeRelationship),
		IsChildcareReference: isChildcare,
		FormToken:            uuid.NewString(),
		Status:               StatusSent,
		SentDate:             now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// CanComplete checks the sent→completed transition.
func (r *ReferenceRequest) CanComplete() error {
	if r.Status == StatusCompleted {
		return dErrors.New(dErrors.CodeInvariantViolation, "reference has already been completed")
	}
	return nil
}

// ApplyResponse records the referee's answer and consumes the token.
func (r *ReferenceRequest) ApplyResponse(data ResponseData, now time.Time) {
	r.Status = StatusCompleted
	r.Response = &data
	t := now
	r.ResponseReceivedDate = &t
	r.FormToken = ""
	r.UpdatedAt = now
}
