package domain

import "time"

// RoleAdmin is the only role with elevated ticket permissions. Every other
// role value (department names such as "IT" or "HR") is treated as a regular
// user by the authorization policy.
const RoleAdmin = "admin"

// User is the read-only directory record for a person who raises or handles
// tickets. Credentials live with the external auth service.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Actor is the immutable snapshot of the authenticated caller handed to the
// authorization policy and the ticket service.
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ActorFromUser builds the policy snapshot for a directory user.
func ActorFromUser(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
