// internal/models/authorization.go
package models

// AuthorizationState is the outcome of one resolution cycle. It is built once
// all predicates have settled and is replaced, never edited, by a later cycle.
type AuthorizationState struct {
	Principal  string `json:"principal"`
	Authorized bool   `json:"authorized"`
	Role       Role   `json:"role,omitempty"`
	Generation uint64 `json:"generation"`
}

func Unauthenticated(principal string) AuthorizationState {
	return AuthorizationState{Principal: principal}
}
