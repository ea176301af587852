package models

// User is the identity record handed out by the identity provider. Treated
// as an immutable value; the provider owns its lifecycle.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
