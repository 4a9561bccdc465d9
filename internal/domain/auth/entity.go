package auth

import (
	"time"

	"github.com/google/uuid"
)

// Roles. A client edits its own site images; an admin can additionally
// provision new client accounts.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// User is a studio account
type User struct {
	ID             uuid.UUID `db:"id"`
	Email          string    `db:"email"`
	PasswordHash   string    `db:"password_hash"`
	Role           string    `db:"role"`
	EmailConfirmed bool      `db:"email_confirmed"`
	CreatedAt      time.Time `db:"created_at"`
}
