package domain

// TokenStore persists the token pair across process restarts.
// Save and Clear write both entries in one transaction so storage never
// holds half a session.
type TokenStore interface {
	LoadTokens() (Credentials, error)
	SaveTokens(creds Credentials) error
	ClearTokens() error
	Close() error
}
