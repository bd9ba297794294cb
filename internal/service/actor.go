package service

import "strings"

// Roles carried in tokens and activity logs.
const (
	RoleAdmin     = "admin"
	RoleAnnotator = "annotator"
	RoleSystem    = "system"
)

// Actor is the identity performing an operation. Handlers and the CLI build it
// explicitly; services never read request state.
type Actor struct {
	ID    uint
	Email string
	Role  string
}

// SystemActor identifies batch jobs started outside an authenticated request.
func SystemActor(name string) Actor {
	return Actor{Email: strings.TrimSpace(name), Role: RoleSystem}
}
