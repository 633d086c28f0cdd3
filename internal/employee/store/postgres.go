package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"minderdesk/internal/employee/models"
	id "minderdesk/pkg/domain"
	"minderdesk/pkg/platform/sentinel"
)

// Postgres persists employees.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const employeeColumns = `
	id, application_id, first_name, last_name, email, phone,
	status, start_date, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, e *models.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(e.ID), uuid.UUID(e.ApplicationID), e.FirstName, e.LastName, e.Email, e.Phone,
		string(e.Status), e.StartDate, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1`, uuid.UUID(employeeID))
	return scanEmployee(row)
}

func (s *Postgres) List(ctx context.Context) ([]*models.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var out []*models.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, e *models.Employee) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE employees SET
			first_name = $1, last_name = $2, email = $3, phone = $4,
			status = $5, updated_at = $6
		WHERE id = $7
	`, e.FirstName, e.LastName, e.Email, e.Phone, string(e.Status), e.UpdatedAt, uuid.UUID(e.ID))
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update employee rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, employeeID id.EmployeeID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM employees WHERE id = $1`, uuid.UUID(employeeID))
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete employee rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*models.Employee, error) {
	var e models.Employee
	var employeeID, applicationID uuid.UUID
	var status string

	err := row.Scan(
		&employeeID, &applicationID, &e.FirstName, &e.LastName, &e.Email, &e.Phone,
		&status, &e.StartDate, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan employee: %w", err)
	}

	e.ID = id.EmployeeID(employeeID)
	e.ApplicationID = id.ApplicationID(applicationID)
	e.Status = models.Status(status)
	return &e, nil
}
