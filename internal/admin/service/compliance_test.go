package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	membermodels "minderdesk/internal/member/models"
	id "minderdesk/pkg/domain"
)

type stubLister struct {
	members []*membermodels.Member
	err     error
}

func (s stubLister) ListByOwner(context.Context, id.Owner) ([]*membermodels.Member, error) {
	return s.members, s.err
}

func member(status membermodels.DBSStatus, requestedAgo *time.Duration, now time.Time) *membermodels.Member {
	m := &membermodels.Member{
		ID:        id.NewMemberID(),
		FirstName: "Sam",
		LastName:  "Hale",
		Kind:      membermodels.KindAdult,
		DBSStatus: status,
		UpdatedAt: now,
	}
	if requestedAgo != nil {
		t := now.Add(-*requestedAgo)
		m.DBSRequestedDate = &t
	}
	return m
}

func days(n int) *time.Duration {
	d := time.Duration(n) * 24 * time.Hour
	return &d
}

func TestScore(t *testing.T) {
	cases := []struct {
		compliant, total, want int
	}{
		{0, 0, 100},
		{3, 3, 100},
		{0, 4, 0},
		{1, 3, 33},
		{2, 3, 67},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Score(tc.compliant, tc.total), "%d/%d", tc.compliant, tc.total)
	}
}

func TestSummarizeEmptyHousehold(t *testing.T) {
	agg := NewAggregator(stubLister{}, 28*24*time.Hour)

	report, err := agg.Summarize(context.Background(), id.ApplicationOwner(id.NewApplicationID()), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 100, report.ComplianceScore)
	assert.NotNil(t, report.Members)
}

func TestSummarizeClassification(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lister := stubLister{members: []*membermodels.Member{
		member(membermodels.DBSReceived, nil, now),
		member(membermodels.DBSExpired, nil, now),
		member(membermodels.DBSRequested, days(3), now),
		member(membermodels.DBSRequested, days(40), now),
		member(membermodels.DBSNotRequested, nil, now),
	}}
	agg := NewAggregator(lister, 28*24*time.Hour)

	report, err := agg.Summarize(context.Background(), id.ApplicationOwner(id.NewApplicationID()), now)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 1, report.Compliant)
	assert.Equal(t, 2, report.Pending)
	assert.Equal(t, 2, report.Overdue)
	assert.Equal(t, 20, report.ComplianceScore)

	states := make(map[string]int)
	for _, mc := range report.Members {
		states[mc.State]++
	}
	assert.Equal(t, map[string]int{"compliant": 1, "pending": 2, "overdue": 2}, states)
}

func TestSummarizeOverdueFallsBackToUpdatedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	// Requested long ago, but before the requested-date column existed.
	m := member(membermodels.DBSRequested, nil, now)
	m.UpdatedAt = now.Add(-40 * 24 * time.Hour)
	agg := NewAggregator(stubLister{members: []*membermodels.Member{m}}, 28*24*time.Hour)

	report, err := agg.Summarize(context.Background(), id.ApplicationOwner(id.NewApplicationID()), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Overdue)
}
