package models

// AuthUser is the identity resolved from a bearer token via the CMS.
type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}
