package model

// Roles
const (
	RoleAdmin  = "admin"
	RoleDoctor = "doctor"
)

// User is a doctor or an administrator. Authentication lives elsewhere;
// this core only reads users for attribution and notification fan-out.
type User struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Email     string `json:"email" db:"email"`
	Role      string `json:"role" db:"role"`
	Hospital  string `json:"hospital" db:"hospital"`
	PushToken string `json:"-" db:"push_token"`
	Timestamps
}

// Actor is the authenticated caller, threaded explicitly through every call.
type Actor struct {
	ID   int64
	Role string
}

// Elevated reports whether the actor bypasses visibility rules. Patients created by
// elevated actors are test data and start hidden.
func (a Actor) Elevated() bool {
	return a.Role == RoleAdmin
}
