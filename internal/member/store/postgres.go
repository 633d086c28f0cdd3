package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"minderdesk/internal/member/models"
	id "minderdesk/pkg/domain"
	"minderdesk/pkg/platform/sentinel"
)

// Postgres persists members in the members table. reminder_history is a
// JSONB column; the version column guards read-modify-write updates.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const memberColumns = `
	id, owner_kind, owner_id, first_name, last_name, date_of_birth,
	relationship, kind, email, dbs_status, dbs_certificate_number,
	dbs_issue_date, dbs_requested_date, form_token, response_received,
	response_date, reminder_count, reminder_history,
	turning_16_notification_sent, version, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, m *models.Member) error {
	history, err := json.Marshal(m.ReminderHistory)
	if err != nil {
		return fmt.Errorf("marshal reminder history: %w", err)
	}
	query := `
		INSERT INTO members (` + memberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(m.ID), string(m.Owner.Kind), m.Owner.ID, m.FirstName, m.LastName, m.DateOfBirth,
		m.Relationship, string(m.Kind), m.Email, string(m.DBSStatus), m.DBSCertificateNumber,
		m.DBSIssueDate, m.DBSRequestedDate, nullableToken(m.FormToken), m.ResponseReceived,
		m.ResponseDate, m.ReminderCount, history,
		m.Turning16NotificationSent, m.Version, m.CreatedAt, m.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, uuid.UUID(memberID))
	return scanMember(row)
}

func (s *Postgres) FindByToken(ctx context.Context, token string) (*models.Member, error) {
	if strings.TrimSpace(token) == "" {
		return nil, sentinel.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE form_token = $1`, token)
	return scanMember(row)
}

func (s *Postgres) Update(ctx context.Context, m *models.Member) error {
	history, err := json.Marshal(m.ReminderHistory)
	if err != nil {
		return fmt.Errorf("marshal reminder history: %w", err)
	}
	query := `
		UPDATE members SET
			first_name = $1, last_name = $2, date_of_birth = $3, relationship = $4,
			kind = $5, email = $6, dbs_status = $7, dbs_certificate_number = $8,
			dbs_issue_date = $9, dbs_requested_date = $10, form_token = $11,
			response_received = $12, response_date = $13, reminder_count = $14,
			reminder_history = $15, turning_16_notification_sent = $16,
			version = version + 1, updated_at = $17
		WHERE id = $18 AND version = $19
	`
	res, err := s.db.ExecContext(ctx, query,
		m.FirstName, m.LastName, m.DateOfBirth, m.Relationship,
		string(m.Kind), m.Email, string(m.DBSStatus), m.DBSCertificateNumber,
		m.DBSIssueDate, m.DBSRequestedDate, nullableToken(m.FormToken),
		m.ResponseReceived, m.ResponseDate, m.ReminderCount,
		history, m.Turning16NotificationSent, m.UpdatedAt,
		uuid.UUID(m.ID), m.Version,
	)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update member rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM members WHERE id = $1)`, uuid.UUID(m.ID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check member existence: %w", err)
		}
		if exists {
			return sentinel.ErrConflict
		}
		return sentinel.ErrNotFound
	}
	m.Version++
	return nil
}

// Execute runs validate and mutate against a row locked with FOR UPDATE,
// making check-then-transition atomic per member.
func (s *Postgres) Execute(ctx context.Context, memberID id.MemberID, validate func(*models.Member) error, mutate func(*models.Member)) (*models.Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin member execute: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, uuid.UUID(memberID))
	m, err := scanMember(row)
	if err != nil {
		return nil, err
	}

	if err := validate(m); err != nil {
		return nil, err
	}
	mutate(m)

	history, err := json.Marshal(m.ReminderHistory)
	if err != nil {
		return nil, fmt.Errorf("marshal reminder history: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE members SET
			first_name = $1, last_name = $2, date_of_birth = $3, relationship = $4,
			kind = $5, email = $6, dbs_status = $7, dbs_certificate_number = $8,
			dbs_issue_date = $9, dbs_requested_date = $10, form_token = $11,
			response_received = $12, response_date = $13, reminder_count = $14,
			reminder_history = $15, turning_16_notification_sent = $16,
			version = version + 1, updated_at = $17
		WHERE id = $18
	`,
		m.FirstName, m.LastName, m.DateOfBirth, m.Relationship,
		string(m.Kind), m.Email, string(m.DBSStatus), m.DBSCertificateNumber,
		m.DBSIssueDate, m.DBSRequestedDate, nullableToken(m.FormToken),
		m.ResponseReceived, m.ResponseDate, m.ReminderCount,
		history, m.Turning16NotificationSent, m.UpdatedAt,
		uuid.UUID(m.ID),
	)
	if err != nil {
		return nil, fmt.Errorf("update member in execute: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit member execute: %w", err)
	}
	m.Version++
	return m, nil
}

func (s *Postgres) ListByOwner(ctx context.Context, owner id.Owner) ([]*models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE owner_kind = $1 AND owner_id = $2 ORDER BY created_at`,
		string(owner.Kind), owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list members by owner: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

func (s *Postgres) ListTurning16InWindow(ctx context.Context, kind id.OwnerKind, from, to time.Time) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE owner_kind = $1
		  AND turning_16_notification_sent = FALSE
		  AND date_of_birth + INTERVAL '16 years' BETWEEN $2 AND $3
		ORDER BY date_of_birth
	`
	rows, err := s.db.QueryContext(ctx, query, string(kind), from, to)
	if err != nil {
		return nil, fmt.Errorf("list members turning 16: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

func (s *Postgres) DeleteByOwner(ctx context.Context, owner id.Owner) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM members WHERE owner_kind = $1 AND owner_id = $2`,
		string(owner.Kind), owner.ID)
	if err != nil {
		return fmt.Errorf("delete members by owner: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*models.Member, error) {
	var m models.Member
	var memberID, ownerID uuid.UUID
	var ownerKind, kind, dbsStatus string
	var formToken sql.NullString
	var history []byte

	err := row.Scan(
		&memberID, &ownerKind, &ownerID, &m.FirstName, &m.LastName, &m.DateOfBirth,
		&m.Relationship, &kind, &m.Email, &dbsStatus, &m.DBSCertificateNumber,
		&m.DBSIssueDate, &m.DBSRequestedDate, &formToken, &m.ResponseReceived,
		&m.ResponseDate, &m.ReminderCount, &history,
		&m.Turning16NotificationSent, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan member: %w", err)
	}

	m.ID = id.MemberID(memberID)
	m.Owner = id.Owner{Kind: id.OwnerKind(ownerKind), ID: ownerID}
	m.Kind = models.Kind(kind)
	m.DBSStatus = models.DBSStatus(dbsStatus)
	m.FormToken = formToken.String
	if len(history) > 0 {
		if err := json.Unmarshal(history, &m.ReminderHistory); err != nil {
			return nil, fmt.Errorf("unmarshal reminder history: %w", err)
		}
	}
	return &m, nil
}

func scanMembers(rows *sql.Rows) ([]*models.Member, error) {
	var out []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// form_token has a partial unique index; empty tokens are stored as NULL
// so consumed tokens never collide.
func nullableToken(token string) any {
	if token == "" {
		return nil
	}
	return token
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
