package entity

import "time"

type User struct {
	ID             int64
	Username       string
	FirstName      string
	PhoneEncrypted []byte
	CreatedAt      time.Time
}
