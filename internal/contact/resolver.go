// Package contact resolves the notification recipient for a compliance
// record's owner. Because every member and reference request is owned by
// exactly one application or employee, "who gets notified" is a single
// lookup against the owning parent.
package contact

import (
	"context"
	"fmt"

	id "minderdesk/pkg/domain"
)

// Contact is a named email recipient.
type Contact struct {
	Name  string
	Email string
}

// ApplicationFinder is the slice of the application service the resolver needs.
type ApplicationFinder interface {
	ContactByID(ctx context.Context, applicationID id.ApplicationID) (name, email string, err error)
}

// EmployeeFinder is the slice of the employee service the resolver needs.
type EmployeeFinder interface {
	ContactByID(ctx context.Context, employeeID id.EmployeeID) (name, email string, err error)
}

// Resolver maps an Owner to the parent's contact details.
type Resolver struct {
	applications ApplicationFinder
	employees    EmployeeFinder
}

func NewResolver(applications ApplicationFinder, employees EmployeeFinder) *Resolver {
	return &Resolver{applications: applications, employees: employees}
}

func (r *Resolver) ResolveContact(ctx context.Context, owner id.Owner) (Contact, error) {
	switch owner.Kind {
	case id.OwnerApplication:
		name, email, err := r.applications.ContactByID(ctx, id.ApplicationID(owner.ID))
		if err != nil {
			return Contact{}, fmt.Errorf("resolve application contact: %w", err)
		}
		return Contact{Name: name, Email: email}, nil
	case id.OwnerEmployee:
		name, email, err := r.employees.ContactByID(ctx, id.EmployeeID(owner.ID))
		if err != nil {
			return Contact{}, fmt.Errorf("resolve employee contact: %w", err)
		}
		return Contact{Name: name, Email: email}, nil
	default:
		return Contact{}, fmt.Errorf("unknown owner kind %q", owner.Kind)
	}
}
