package models

// Role gates access to privileged operations.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)
