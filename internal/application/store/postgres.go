package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"minderdesk/internal/application/models"
	id "minderdesk/pkg/domain"
	"minderdesk/pkg/platform/sentinel"
)

// Postgres persists applications. Variable-length sections
// (qualifications, employment history) live in JSONB columns.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const applicationColumns = `
	id, first_name, last_name, email, phone, date_of_birth,
	address, premises_type, qualifications, employment_history,
	declarations, status, submitted_at, reviewed_at, reviewed_by, notes`

func (s *Postgres) Create(ctx context.Context, a *models.Application) error {
	addr, quals, hist, decls, err := marshalSections(a)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(a.ID), a.FirstName, a.LastName, a.Email, a.Phone, a.DateOfBirth,
		addr, a.PremisesType, quals, hist,
		decls, string(a.Status), a.SubmittedAt, a.ReviewedAt, nullableAdmin(a.ReviewedBy), a.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, uuid.UUID(applicationID))
	return scanApplication(row)
}

func (s *Postgres) List(ctx context.Context, status models.Status) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Execute validates and mutates an application against a FOR UPDATE lock.
func (s *Postgres) Execute(ctx context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, mutate func(*models.Application)) (*models.Application, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin application execute: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, uuid.UUID(applicationID))
	a, err := scanApplication(row)
	if err != nil {
		return nil, err
	}

	if err := validate(a); err != nil {
		return nil, err
	}
	mutate(a)

	addr, quals, hist, decls, err := marshalSections(a)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE applications SET
			first_name = $1, last_name = $2, email = $3, phone = $4, date_of_birth = $5,
			address = $6, premises_type = $7, qualifications = $8, employment_history = $9,
			declarations = $10, status = $11, reviewed_at = $12, reviewed_by = $13, notes = $14
		WHERE id = $15
	`,
		a.FirstName, a.LastName, a.Email, a.Phone, a.DateOfBirth,
		addr, a.PremisesType, quals, hist,
		decls, string(a.Status), a.ReviewedAt, nullableAdmin(a.ReviewedBy), a.Notes,
		uuid.UUID(a.ID),
	)
	if err != nil {
		return nil, fmt.Errorf("update application in execute: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit application execute: %w", err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var a models.Application
	var appID uuid.UUID
	var status string
	var addr, quals, hist, decls []byte
	var reviewedBy *uuid.UUID

	err := row.Scan(
		&appID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.DateOfBirth,
		&addr, &a.PremisesType, &quals, &hist,
		&decls, &status, &a.SubmittedAt, &a.ReviewedAt, &reviewedBy, &a.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}

	a.ID = id.ApplicationID(appID)
	a.Status = models.Status(status)
	if reviewedBy != nil {
		a.ReviewedBy = id.AdminID(*reviewedBy)
	}
	if err := json.Unmarshal(addr, &a.Address); err != nil {
		return nil, fmt.Errorf("unmarshal address: %w", err)
	}
	if len(quals) > 0 {
		if err := json.Unmarshal(quals, &a.Qualifications); err != nil {
			return nil, fmt.Errorf("unmarshal qualifications: %w", err)
		}
	}
	if len(hist) > 0 {
		if err := json.Unmarshal(hist, &a.EmploymentHistory); err != nil {
			return nil, fmt.Errorf("unmarshal employment history: %w", err)
		}
	}
	if len(decls) > 0 {
		if err := json.Unmarshal(decls, &a.Declarations); err != nil {
			return nil, fmt.Errorf("unmarshal declarations: %w", err)
		}
	}
	return &a, nil
}

func marshalSections(a *models.Application) (addr, quals, hist, decls []byte, err error) {
	if addr, err = json.Marshal(a.Address); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal address: %w", err)
	}
	if quals, err = json.Marshal(a.Qualifications); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal qualifications: %w", err)
	}
	if hist, err = json.Marshal(a.EmploymentHistory); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal employment history: %w", err)
	}
	if decls, err = json.Marshal(a.Declarations); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal declarations: %w", err)
	}
	return addr, quals, hist, decls, nil
}

func nullableAdmin(adminID id.AdminID) any {
	if adminID.IsNil() {
		return nil
	}
	return uuid.UUID(adminID)
}
