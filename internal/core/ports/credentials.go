package ports

import "context"

// Credentials are the raw tokens a request presented.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

type credentialsKey struct{}

// WithCredentials attaches request credentials to ctx. The session resolver
// and identity providers read them from there; nothing is held globally.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFrom returns the credentials attached to ctx, if any.
func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	if !ok || c.AccessToken == "" {
		return Credentials{}, false
	}
	return c, true
}

// PresentedCredentials returns whatever tokens ctx carries, including a refresh
// token presented without an access token. Sign-out revokes from either.
func PresentedCredentials(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	if !ok || (c.AccessToken == "" && c.RefreshToken == "") {
		return Credentials{}, false
	}
	return c, true
}
