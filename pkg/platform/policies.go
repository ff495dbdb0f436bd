package platform

import (
	"context"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/google/uuid"
)

// RequestIDHeader carries a unique id per platform request.
const RequestIDHeader = "X-Request-Id"

type sessionKey struct{}

type noTokenKey struct{}

// withSession makes the bearer policy send the given session's token.
func withSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// withoutToken suppresses the Authorization header, used by the token exchange itself.
func withoutToken(ctx context.Context) context.Context {
	return context.WithValue(ctx, noTokenKey{}, true)
}

type requestIDPolicy struct{}

func (p *requestIDPolicy) Do(req *policy.Request) (*http.Response, error) {
	if req.Raw().Header.Get(RequestIDHeader) == "" {
		req.Raw().Header.Set(RequestIDHeader, uuid.NewString())
	}
	return req.Next()
}

// bearerPolicy authorizes requests with the call's session, falling back to the
// client's current session.
type bearerPolicy struct {
	client *HTTPClient
}

func (p *bearerPolicy) Do(req *policy.Request) (*http.Response, error) {
	ctx := req.Raw().Context()
	if skip, _ := ctx.Value(noTokenKey{}).(bool); skip {
		return req.Next()
	}

	session, _ := ctx.Value(sessionKey{}).(*Session)
	if !session.Authenticated() {
		session = p.client.Session()
	}
	if session.Authenticated() {
		req.Raw().Header.Set("Authorization", "Bearer "+session.AccessToken)
	}
	return req.Next()
}
