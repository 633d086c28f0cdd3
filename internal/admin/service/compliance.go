package service

import (
	"context"
	"math"
	"time"

	membermodels "minderdesk/internal/member/models"
	id "minderdesk/pkg/domain"
	dErrors "minderdesk/pkg/domain-errors"
)

// MemberLister is the slice of the member service the aggregator needs.
type MemberLister interface {
	ListByOwner(ctx context.Context, owner id.Owner) ([]*membermodels.Member, error)
}

// MemberCompliance is one member's line in the compliance report.
type MemberCompliance struct {
	MemberID  id.MemberID            `json:"memberId"`
	Name      string                 `json:"name"`
	Kind      membermodels.Kind      `json:"kind"`
	DBSStatus membermodels.DBSStatus `json:"dbsStatus"`
	State     string                 `json:"state"`
}

// Report aggregates an owner's members into compliance buckets.
type Report struct {
	Total           int                `json:"total"`
	Compliant       int                `json:"compliant"`
	Pending         int                `json:"pending"`
	Overdue         int                `json:"overdue"`
	ComplianceScore int                `json:"complianceScore"`
	Members         []MemberCompliance `json:"members"`
}

const (
	stateCompliant = "compliant"
	statePending   = "pending"
	stateOverdue   = "overdue"
)

// Aggregator computes compliance reports. Pure read-side, no mutation.
type Aggregator struct {
	members      MemberLister
	overdueAfter time.Duration
}

func NewAggregator(members MemberLister, overdueAfter time.Duration) *Aggregator {
	return &Aggregator{members: members, overdueAfter: overdueAfter}
}

// Summarize partitions an owner's members and scores overall compliance.
// An owner with nobody to check scores 100.
func (a *Aggregator) Summarize(ctx context.Context, owner id.Owner, now time.Time) (*Report, error) {
	members, err := a.members.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members for compliance")
	}

	report := &Report{
		Total:   len(members),
		Members: make([]MemberCompliance, 0, len(members)),
	}
	for _, m := range members {
		state := classify(m, now, a.overdueAfter)
		switch state {
		case stateCompliant:
			report.Compliant++
		case stateOverdue:
			report.Overdue++
		default:
			report.Pending++
		}
		report.Members = append(report.Members, MemberCompliance{
			MemberID:  m.ID,
			Name:      m.FullName(),
			Kind:      m.Kind,
			DBSStatus: m.DBSStatus,
			State:     state,
		})
	}

	report.ComplianceScore = Score(report.Compliant, report.Total)
	return report, nil
}

// classify buckets one member: a received certificate is compliant, an
// expired one or a request outstanding past the threshold is overdue,
// everything else is pending.
func classify(m *membermodels.Member, now time.Time, overdueAfter time.Duration) string {
	switch m.DBSStatus {
	case membermodels.DBSReceived:
		return stateCompliant
	case membermodels.DBSExpired:
		return stateOverdue
	case membermodels.DBSRequested:
		requested := m.UpdatedAt
		if m.DBSRequestedDate != nil {
			requested = *m.DBSRequestedDate
		}
		if now.Sub(requested) > overdueAfter {
			return stateOverdue
		}
		return statePending
	default:
		return statePending
	}
}

// Score is the rounded percentage of compliant members, 100 when there is
// nobody to check.
func Score(compliant, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(compliant) / float64(total) * 100))
}
