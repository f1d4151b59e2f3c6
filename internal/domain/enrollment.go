package domain

import "time"

// Enrollment is the unit of work produced by one successful callback.
// It is never updated once created.
type Enrollment struct {
	// ID correlates log lines of one enrollment; sinks that mirror the
	// historical record format do not persist it.
	ID           string
	Name         string
	Email        string
	RefreshToken string
	EnrolledAt   time.Time
}

// TokenPair is the result of the authorization-code exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Claims are the identity facts gathered for an enrollment. Email comes from the
// access token payload, FullName from the provider's profile query.
type Claims struct {
	Email    string
	FullName string
}

// RedactedView is the display-only projection of an Enrollment.
type RedactedView struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	RefreshToken string `json:"refresh_token"`
}

// CallbackState enumerates the terminal states of one callback.
type CallbackState string

const (
	CallbackDenied    CallbackState = "DENIED"
	CallbackFailed    CallbackState = "FAILED"
	CallbackSucceeded CallbackState = "SUCCEEDED"
)
