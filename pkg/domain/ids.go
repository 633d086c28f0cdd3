// Package domain defines strongly typed identifiers shared across modules.
// Wrapping uuid.UUID keeps an ApplicationID from being passed where an
// EmployeeID is expected.
package domain

import "github.com/google/uuid"

type (
	ApplicationID uuid.UUID
	EmployeeID    uuid.UUID
	MemberID      uuid.UUID
	ReferenceID   uuid.UUID
	AdminID       uuid.UUID
)

func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }
func NewEmployeeID() EmployeeID       { return EmployeeID(uuid.New()) }
func NewMemberID() MemberID           { return MemberID(uuid.New()) }
func NewReferenceID() ReferenceID     { return ReferenceID(uuid.New()) }

func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id EmployeeID) String() string    { return uuid.UUID(id).String() }
func (id MemberID) String() string      { return uuid.UUID(id).String() }
func (id ReferenceID) String() string   { return uuid.UUID(id).String() }
func (id AdminID) String() string       { return uuid.UUID(id).String() }

func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EmployeeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MemberID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ReferenceID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AdminID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := uuid.Parse(s)
	return ApplicationID(u), err
}

func ParseEmployeeID(s string) (EmployeeID, error) {
	u, err := uuid.Parse(s)
	return EmployeeID(u), err
}

func ParseMemberID(s string) (MemberID, error) {
	u, err := uuid.Parse(s)
	return MemberID(u), err
}

func ParseReferenceID(s string) (ReferenceID, error) {
	u, err := uuid.Parse(s)
	return ReferenceID(u), err
}

func ParseAdminID(s string) (AdminID, error) {
	u, err := uuid.Parse(s)
	return AdminID(u), err
}

// MarshalText implementations keep typed IDs JSON-friendly as plain
// UUID strings.

func (id ApplicationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id EmployeeID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id MemberID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ReferenceID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id AdminID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *ApplicationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EmployeeID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *MemberID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ReferenceID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AdminID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
