package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minderdesk/internal/contact"
	membermodels "minderdesk/internal/member/models"
	memberservice "minderdesk/internal/member/service"
	memberstore "minderdesk/internal/member/store"
	"minderdesk/internal/notify"
	id "minderdesk/pkg/domain"
	auditmemory "minderdesk/pkg/platform/audit/memory"
	"minderdesk/pkg/testutil"
)

type stubContacts struct{}

func (stubContacts) ResolveContact(context.Context, id.Owner) (contact.Contact, error) {
	return contact.Contact{Name: "Jo Field", Email: "jo@example.com"}, nil
}

type env struct {
	router  chi.Router
	members *memberstore.InMemory
	mailer  *notify.MemoryMailer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	members := memberstore.NewInMemory()
	mailer := notify.NewMemoryMailer()
	svc := memberservice.New(members, notify.NewDispatcher(mailer, logger, nil),
		stubContacts{}, auditmemory.NewInMemoryStore(), logger, "https://forms.example.com")

	h := New(svc, logger)
	r := chi.NewRouter()
	h.RegisterPublic(r)
	h.RegisterAdmin(r)
	return &env{router: r, members: members, mailer: mailer}
}

func (e *env) createMember(t *testing.T) *membermodels.Member {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/members", map[string]any{
		"owner_kind":    "application",
		"owner_id":      id.NewApplicationID().String(),
		"first_name":    "Sam",
		"last_name":     "Hale",
		"date_of_birth": "1990-05-20T00:00:00Z",
		"relationship":  "partner",
		"kind":          "adult",
		"email":         "sam@example.com",
	})
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return testutil.UnmarshalResponse[membermodels.Member](t, rr)
}

func TestCreateAndGetMember(t *testing.T) {
	e := newEnv(t)
	m := e.createMember(t)

	rr := testutil.DoRequest(e.router, testutil.NewRequest(t, http.MethodGet, "/members/"+m.ID.String()))
	testutil.AssertStatus(t, rr, http.StatusOK)
	got := testutil.UnmarshalResponse[membermodels.Member](t, rr)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, membermodels.DBSNotRequested, got.DBSStatus)
}

func TestCreateMemberRejectsBadOwner(t *testing.T) {
	e := newEnv(t)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/members", map[string]any{
		"owner_kind": "charity",
		"owner_id":   id.NewApplicationID().String(),
		"first_name": "Sam",
		"last_name":  "Hale",
	})
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}

func TestCreateMemberRejectsInvalidBody(t *testing.T) {
	e := newEnv(t)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/members", "not an object")
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}

func TestListMembersByOwner(t *testing.T) {
	e := newEnv(t)
	m := e.createMember(t)

	rr := testutil.DoRequest(e.router, testutil.NewRequest(t, http.MethodGet,
		"/members?owner_kind="+string(m.Owner.Kind)+"&owner_id="+m.Owner.ID.String()))
	testutil.AssertStatus(t, rr, http.StatusOK)
	got := testutil.UnmarshalResponse[[]*membermodels.Member](t, rr)
	assert.Len(t, *got, 1)

	rr = testutil.DoRequest(e.router, testutil.NewRequest(t, http.MethodGet,
		"/members?owner_kind=application&owner_id="+id.NewApplicationID().String()))
	testutil.AssertStatus(t, rr, http.StatusOK)
	got = testutil.UnmarshalResponse[[]*membermodels.Member](t, rr)
	assert.Empty(t, *got)
}

func TestDBSRequestAndHouseholdForm(t *testing.T) {
	e := newEnv(t)
	m := e.createMember(t)

	rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost,
		"/members/"+m.ID.String()+"/dbs-request", map[string]any{}))
	testutil.AssertStatus(t, rr, http.StatusOK)
	got := testutil.UnmarshalResponse[membermodels.Member](t, rr)
	assert.Equal(t, membermodels.DBSRequested, got.DBSStatus)
	require.Len(t, e.mailer.Sent(), 1)

	// The form token never leaves the API; fish it out of the store the
	// way the emailed link would carry it.
	stored, err := e.members.FindByID(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.FormToken)

	rr = testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost,
		"/household/"+stored.FormToken, map[string]any{
			"has_certificate":    true,
			"certificate_number": "001234567890",
			"issue_date":         time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		}))
	testutil.AssertStatus(t, rr, http.StatusOK)
	got = testutil.UnmarshalResponse[membermodels.Member](t, rr)
	assert.Equal(t, membermodels.DBSReceived, got.DBSStatus)

	// Token is single-use.
	rr = testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost,
		"/household/"+stored.FormToken, map[string]any{}))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	e := newEnv(t)
	m := e.createMember(t)

	rr := testutil.DoRequest(e.router, testutil.NewJSONRequest(t, http.MethodPost,
		"/members/"+m.ID.String()+"/status", map[string]any{"status": "received"}))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
}

func TestGetMemberBadID(t *testing.T) {
	e := newEnv(t)
	rr := testutil.DoRequest(e.router, testutil.NewRequest(t, http.MethodGet, "/members/not-a-uuid"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}
