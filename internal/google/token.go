package google

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/wjlander/dash-free-display/internal/integration"
	"github.com/wjlander/dash-free-display/internal/store"
)

// TokenProvider returns a currently valid access token for a user, refreshing
// the stored credential synchronously when it has expired.
//
// A refresh failure leaves the stored credential untouched: the next call will
// attempt the same refresh again, and the caller is expected to surface the
// error so the user can re-authorize.
type TokenProvider struct {
	creds store.GoogleCredentialRepository
	oauth *oauth2.Config

	// HTTPClient is used for the refresh call. Nil means http.DefaultClient.
	HTTPClient *http.Client

	// Now is the wall clock; replaceable in tests.
	Now func() time.Time
}

func NewTokenProvider(clientID, clientSecret string, creds store.GoogleCredentialRepository) *TokenProvider {
	return &TokenProvider{
		creds: creds,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     Endpoint,
		},
		Now: time.Now,
	}
}

// WithEndpoint swaps the OAuth endpoint; used by tests.
func (p *TokenProvider) WithEndpoint(e oauth2.Endpoint) *TokenProvider {
	p.oauth.Endpoint = e
	return p
}

// AccessToken returns a valid access token for the user. The stored expiry is
// checked first; an expired credential triggers exactly one refresh-grant call
// before returning.
func (p *TokenProvider) AccessToken(ctx context.Context, userID int64) (string, error) {
	cred, err := p.creds.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", &integration.ConfigurationError{Reason: "google calendar is not connected"}
		}
		return "", err
	}

	if p.Now().Before(cred.ExpiresAt) {
		return cred.AccessToken, nil
	}

	return p.refresh(ctx, cred)
}

func (p *TokenProvider) refresh(ctx context.Context, cred *store.GoogleCredential) (string, error) {
	if cred.RefreshToken == "" {
		return "", &integration.ConfigurationError{Reason: "no refresh token stored"}
	}

	if p.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.HTTPClient)
	}

	// A token source seeded with only the refresh token always performs the
	// refresh grant.
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", &integration.AuthError{Reason: "token refresh rejected: " + retrieveErr.Error()}
		}
		return "", &integration.NetworkError{Err: err}
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		// Providers that omit expires_in get a conservative default.
		expiry = p.Now().Add(time.Hour)
	}

	// Google normally returns no refresh_token on a refresh grant, but when
	// it rotates one the old value stops working, so a returned token must be
	// persisted. An empty value keeps the stored one.
	if err := p.creds.UpdateTokens(ctx, cred.UserID, tok.AccessToken, tok.RefreshToken, expiry); err != nil {
		return "", err
	}

	return tok.AccessToken, nil
}
