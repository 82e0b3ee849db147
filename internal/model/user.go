package model

import "time"

// Role names stored in users.role and carried in the JWT "role" claim.
// A HOST can still rent spaces owned by somebody else.
const (
    RoleClient = "CLIENT"
    RoleHost   = "HOST"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
    return r == RoleClient || r == RoleHost
}

// User represents an application user record as stored in the
// `users` table. The json tags are omitted here because these structs
// are used by the repository layer; handlers define their own
// response types.
//
// Fields:
//  ID           - primary key identifier of the user.
//  Email        - unique, lower-cased email address.
//  PasswordHash - bcrypt hashed password.
//  Name         - display name.
//  Phone        - optional contact number.
//  Role         - CLIENT or HOST.
//  IsActive     - whether the account may log in.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Name         string    // users.name
    Phone        string    // users.phone
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token handed to the client is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
