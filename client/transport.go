package client

import (
	"io"
	"net/http"
)

// Transport attaches the session's bearer token to outgoing requests. A 401
// answer triggers exactly one refresh followed by one retry; requests waiting
// on the same refresh resume in the order they started waiting.
type Transport struct {
	Manager *SessionManager
	Base    http.RoundTripper // nil means http.DefaultTransport
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, err := t.Manager.AccessToken(ctx)
	if err != nil {
		// Anonymous calls go out unauthenticated; the server decides
		return t.base().RoundTrip(req)
	}

	resp, err := t.base().RoundTrip(withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// A body that cannot be replayed cannot be retried
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	// Another request may have refreshed already
	current, err := t.Manager.AccessToken(ctx)
	if err != nil {
		return resp, nil
	}
	if current == token {
		if !t.Manager.RefreshToken(ctx) {
			return resp, nil
		}
		if current, err = t.Manager.AccessToken(ctx); err != nil {
			return resp, nil
		}
	}

	retry, err := rewind(req)
	if err != nil {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return t.base().RoundTrip(withBearer(retry, current))
}

func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}

func rewind(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	return out, nil
}
