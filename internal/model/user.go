package model

import "time"

// Roles carried in the JWT "role" claim.  Admin and staff may perform
// back-office operations.
const (
    RoleAdmin    = "admin"
    RoleStaff    = "staff"
    RoleCustomer = "customer"
)

// IsBackOffice reports whether role may run admin-only operations.
func IsBackOffice(role string) bool { return role == RoleAdmin || role == RoleStaff }

// User represents a row of the users table.  Mileage is a cache of the
// balance_after of the user's latest ledger row and is written only by the
// ledger.
type User struct {
    ID        uint64    `db:"id" json:"id"`
    Email     string    `db:"email" json:"email"`
    Name      string    `db:"name" json:"name"`
    Role      string    `db:"role" json:"role"`
    Mileage   int64     `db:"mileage" json:"mileage"`
    CreatedAt time.Time `db:"created_at" json:"created_at"`
    UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
