// Package google implements the Google Calendar integration: the OAuth
// authorization flow, the stored-credential token refresher, and the
// calendar REST client.
package google

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	"github.com/wjlander/dash-free-display/internal/integration"
)

// CalendarReadonlyScope is the only scope the dashboard ever requests.
const CalendarReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

// Endpoint is Google's OAuth 2.0 endpoint pair.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// TokenGrant is the outcome of an authorization-code exchange.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
}

// OAuthFlow builds consent URLs and performs the server-side code exchange.
// The client secret never leaves this process.
type OAuthFlow struct {
	oauth *oauth2.Config
}

func NewOAuthFlow(clientID, clientSecret, redirectURI string) *OAuthFlow {
	return &OAuthFlow{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{CalendarReadonlyScope},
			Endpoint:     Endpoint,
		},
	}
}

// Configured reports whether an OAuth client was provided at startup.
func (f *OAuthFlow) Configured() bool {
	return f.oauth.ClientID != "" && f.oauth.ClientSecret != ""
}

// AuthorizationURL returns the consent URL the browser is redirected to.
// access_type=offline and prompt=consent force Google to issue a refresh
// token on every authorization, not just the first one.
func (f *OAuthFlow) AuthorizationURL(state string) string {
	return f.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// ExchangeCode trades an authorization code for a token pair.
func (f *OAuthFlow) ExchangeCode(ctx context.Context, code string) (*TokenGrant, error) {
	if !f.Configured() {
		return nil, &integration.ConfigurationError{Reason: "google oauth client not configured"}
	}

	tok, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &integration.AuthError{Reason: "authorization code exchange rejected: " + retrieveErr.Error()}
		}
		return nil, &integration.NetworkError{Err: err}
	}

	if tok.RefreshToken == "" {
		// prompt=consent should guarantee one; treat its absence as a failed
		// authorization so the user retries instead of storing a credential
		// that can never be refreshed.
		return nil, &integration.AuthError{Reason: "no refresh token in token response"}
	}

	scope, _ := tok.Extra("scope").(string)
	return &TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scope:        scope,
	}, nil
}

// WithEndpoint swaps the OAuth endpoint; used by tests to point the flow at a
// local token server.
func (f *OAuthFlow) WithEndpoint(e oauth2.Endpoint) *OAuthFlow {
	f.oauth.Endpoint = e
	return f
}
