package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// OwnerKind tags which parent entity owns a compliance record.
type OwnerKind string

const (
	OwnerApplication OwnerKind = "application"
	OwnerEmployee    OwnerKind = "employee"
)

// Owner identifies the single parent of a compliance record: an
// application XOR an employee, never both. The stores enforce the
// exclusivity; this type makes it unrepresentable in service code.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func ApplicationOwner(id ApplicationID) Owner {
	return Owner{Kind: OwnerApplication, ID: uuid.UUID(id)}
}

func EmployeeOwner(id EmployeeID) Owner {
	return Owner{Kind: OwnerEmployee, ID: uuid.UUID(id)}
}

func (o Owner) Validate() error {
	if o.Kind != OwnerApplication && o.Kind != OwnerEmployee {
		return fmt.Errorf("invalid owner kind %q", o.Kind)
	}
	if o.ID == uuid.Nil {
		return fmt.Errorf("owner id is required")
	}
	return nil
}

func (o Owner) String() string {
	return fmt.Sprintf("%s/%s", o.Kind, o.ID)
}
