package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/joshdurbin/strava-dashboard/internal/logging"
)

const (
	authURL      = "https://www.strava.com/oauth/authorize"
	tokenURL     = "https://www.strava.com/oauth/token"
	callbackAddr = "localhost:8089"
	redirectURI  = "http://" + callbackAddr + "/callback"
	scopes       = "activity:read_all"

	authTimeout = 5 * time.Minute
)

// StravaEndpoint is the OAuth endpoint of Strava
var StravaEndpoint = oauth2.Endpoint{
	AuthURL:   authURL,
	TokenURL:  tokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// StravaOAuthConfig returns an OAuth2 config for Strava
func StravaOAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     StravaEndpoint,
		RedirectURL:  redirectURI,
		Scopes:       []string{scopes},
	}
}

// Athlete identifies the account the tokens belong to
type Athlete struct {
	ID      int64
	Name    string
	Profile string
}

// UserID is the cache partition of the athlete, empty when unknown
func (a Athlete) UserID() string {
	if a.ID == 0 {
		return ""
	}
	return strconv.FormatInt(a.ID, 10)
}

// TokenResponse is the token set persisted between runs
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	TokenType    string `json:"token_type"`

	// Athlete is only present on the authorization code exchange
	Athlete *Athlete `json:"-"`
}

// TokenFromOAuth2 converts an oauth2.Token, picking up the athlete Strava
// embeds in the token response
func TokenFromOAuth2(token *oauth2.Token) *TokenResponse {
	return &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.Unix(),
		TokenType:    token.TokenType,
		Athlete:      athleteFromToken(token),
	}
}

// ToOAuth2Token converts back to an oauth2.Token
func (t *TokenResponse) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       time.Unix(t.ExpiresAt, 0),
		TokenType:    t.TokenType,
	}
}

func athleteFromToken(token *oauth2.Token) *Athlete {
	raw, ok := token.Extra("athlete").(map[string]any)
	if !ok {
		return nil
	}

	var a Athlete
	switch id := raw["id"].(type) {
	case float64:
		a.ID = int64(id)
	case string:
		a.ID, _ = strconv.ParseInt(id, 10, 64)
	}
	if a.ID == 0 {
		return nil
	}

	first, _ := raw["firstname"].(string)
	last, _ := raw["lastname"].(string)
	a.Name = strings.TrimSpace(first + " " + last)
	a.Profile, _ = raw["profile"].(string)
	return &a
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// callbackHandler accepts one authorization redirect carrying state
func callbackHandler(state string, codeChan chan<- string, errChan chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errChan <- errors.New("authorization failed: state mismatch")
			return
		}

		code := q.Get("code")
		if code == "" {
			errMsg := q.Get("error")
			if errMsg == "" {
				errMsg = "no authorization code received"
			}
			http.Error(w, errMsg, http.StatusBadRequest)
			errChan <- fmt.Errorf("authorization failed: %s", errMsg)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>Authorization successful!</h1><p>You can close this window and return to the dashboard.</p></body></html>`)
		codeChan <- code
	}
}

// Authenticate runs the authorization code flow through a local callback
// server and returns the tokens together with the athlete
func Authenticate(ctx context.Context, clientID, clientSecret string) (*TokenResponse, error) {
	config := StravaOAuthConfig(clientID, clientSecret)

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 2)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", callbackHandler(state, codeChan, errChan))
	server := &http.Server{
		Addr:              callbackAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("callback server error: %w", err)
		}
	}()
	defer server.Shutdown(context.Background())

	url := config.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))

	fmt.Println("Opening browser for Strava authorization...")
	fmt.Printf("If browser doesn't open, visit: %s\n\n", url)
	if err := browser.OpenURL(url); err != nil {
		logging.Warn("could not open browser automatically", "error", err)
	}

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, errors.New("authorization timeout")
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	return TokenFromOAuth2(token), nil
}

// RefreshAccessToken trades a refresh token for a new token set
func RefreshAccessToken(ctx context.Context, config *oauth2.Config, refreshToken string) (*TokenResponse, error) {
	expired := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}

	token, err := config.TokenSource(ctx, expired).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	return TokenFromOAuth2(token), nil
}

// IsTokenExpired reports whether the token expires within five minutes
func IsTokenExpired(expiresAt int64) bool {
	return time.Now().Unix() > (expiresAt - 300)
}
