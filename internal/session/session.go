// Package session abstracts the identity collaborator: who the caller is,
// whether they are signed in, and the per-user external id used as the
// shared secret in cross-account role trust.
package session

// Context is the caller's session, passed explicitly to the request builder
// and the job client instead of being read from ambient global state.
type Context interface {
	// CurrentExternalID returns the external id already fetched for this
	// user, or "" when none has been fetched. It never performs I/O.
	CurrentExternalID() string

	// IsAuthenticated reports whether the session is usable.
	IsAuthenticated() bool

	// Username returns the signed-in user name.
	Username() string

	// Role returns the signed-in user's role, e.g. "USER" or "ADMIN".
	Role() string
}

// Static is a fixed Context, used when credentials come from configuration.
type Static struct {
	User          string
	UserRole      string
	ExternalID    string
	Authenticated bool
}

func (s Static) CurrentExternalID() string { return s.ExternalID }
func (s Static) IsAuthenticated() bool     { return s.Authenticated }
func (s Static) Username() string          { return s.User }
func (s Static) Role() string              { return s.UserRole }
