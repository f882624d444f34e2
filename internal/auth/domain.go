package auth

import "time"

// User is a back-office staff account. Members authenticate through the USSD
// and mobile surfaces, which live outside this service.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	IsActive     bool
	CreatedAt    time.Time
}
