package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"minderdesk/internal/reference/models"
	id "minderdesk/pkg/domain"
	"minderdesk/pkg/platform/sentinel"
)

// Postgres persists reference requests. The (owner_kind, owner_id,
// reference_number) unique constraint enforces the two-slot rule.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const referenceColumns = `
	id, owner_kind, owner_id, reference_number, referee_name, referee_email,
	referee_relationship, is_childcare_reference, form_token, status, response,
	sent_date, response_received_date, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, r *models.ReferenceRequest) error {
	response, err := marshalResponse(r)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO reference_requests (` + referenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(r.ID), string(r.Owner.Kind), r.Owner.ID, r.ReferenceNumber, r.RefereeName, r.RefereeEmail,
		r.RefereeRelationship, r.IsChildcareReference, nullableToken(r.FormToken), string(r.Status), response,
		r.SentDate, r.ResponseReceivedDate, r.CreatedAt, r.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert reference request: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, referenceID id.ReferenceID) (*models.ReferenceRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+referenceColumns+` FROM reference_requests WHERE id = $1`, uuid.UUID(referenceID))
	return scanRequest(row)
}

func (s *Postgres) FindByToken(ctx context.Context, token string) (*models.ReferenceRequest, error) {
	if strings.TrimSpace(token) == "" {
		return nil, sentinel.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+referenceColumns+` FROM reference_requests WHERE form_token = $1`, token)
	return scanRequest(row)
}

// Execute validates and mutates a request against a FOR UPDATE lock, so
// the sent→completed transition has exactly one winner.
func (s *Postgres) Execute(ctx context.Context, referenceID id.ReferenceID, validate func(*models.ReferenceRequest) error, mutate func(*models.ReferenceRequest)) (*models.ReferenceRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reference execute: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+referenceColumns+` FROM reference_requests WHERE id = $1 FOR UPDATE`, uuid.UUID(referenceID))
	r, err := scanRequest(row)
	if err != nil {
		return nil, err
	}

	if err := validate(r); err != nil {
		return nil, err
	}
	mutate(r)

	response, err := marshalResponse(r)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE reference_requests SET
			referee_name = $1, referee_email = $2, referee_relationship = $3,
			is_childcare_reference = $4, form_token = $5, status = $6,
			response = $7, response_received_date = $8, updated_at = $9
		WHERE id = $10
	`,
		r.RefereeName, r.RefereeEmail, r.RefereeRelationship,
		r.IsChildcareReference, nullableToken(r.FormToken), string(r.Status),
		response, r.ResponseReceivedDate, r.UpdatedAt,
		uuid.UUID(r.ID),
	)
	if err != nil {
		return nil, fmt.Errorf("update reference in execute: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reference execute: %w", err)
	}
	return r, nil
}

func (s *Postgres) ListByOwner(ctx context.Context, owner id.Owner) ([]*models.ReferenceRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+referenceColumns+` FROM reference_requests
		 WHERE owner_kind = $1 AND owner_id = $2 ORDER BY reference_number`,
		string(owner.Kind), owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list references by owner: %w", err)
	}
	defer rows.Close()

	var out []*models.ReferenceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) Delete(ctx context.Context, referenceID id.ReferenceID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reference_requests WHERE id = $1`, uuid.UUID(referenceID))
	if err != nil {
		return fmt.Errorf("delete reference request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reference rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteByOwner(ctx context.Context, owner id.Owner) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reference_requests WHERE owner_kind = $1 AND owner_id = $2`,
		string(owner.Kind), owner.ID)
	if err != nil {
		return fmt.Errorf("delete references by owner: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.ReferenceRequest, error) {
	var r models.ReferenceRequest
	var referenceID, ownerID uuid.UUID
	var ownerKind, status string
	var formToken sql.NullString
	var response []byte

	err := row.Scan(
		&referenceID, &ownerKind, &ownerID, &r.ReferenceNumber, &r.RefereeName, &r.RefereeEmail,
		&r.RefereeRelationship, &r.IsChildcareReference, &formToken, &status, &response,
		&r.SentDate, &r.ResponseReceivedDate, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan reference request: %w", err)
	}

	r.ID = id.ReferenceID(referenceID)
	r.Owner = id.Owner{Kind: id.OwnerKind(ownerKind), ID: ownerID}
	r.Status = models.Status(status)
	r.FormToken = formToken.String
	if len(response) > 0 {
		var data models.ResponseData
		if err := json.Unmarshal(response, &data); err != nil {
			return nil, fmt.Errorf("unmarshal reference response: %w", err)
		}
		r.Response = &data
	}
	return &r, nil
}

func marshalResponse(r *models.ReferenceRequest) (any, error) {
	if r.Response == nil {
		return nil, nil
	}
	b, err := json.Marshal(r.Response)
	if err != nil {
		return nil, fmt.Errorf("marshal reference response: %w", err)
	}
	return b, nil
}

// Consumed tokens are stored as NULL so the partial unique index on
// form_token never collides.
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
