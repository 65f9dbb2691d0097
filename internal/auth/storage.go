package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/joshdurbin/strava-dashboard/internal/db"
	"github.com/joshdurbin/strava-dashboard/internal/logging"
)

// ErrNotAuthenticated is returned when no usable tokens are stored
var ErrNotAuthenticated = errors.New("not authenticated: restart with --force-reauth")

// ErrNoClientConfig is returned when no client credentials are stored
var ErrNoClientConfig = errors.New("client not configured")

// StoredTokens represents the tokens stored in the database
type StoredTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// ClientConfig represents the stored client credentials
type ClientConfig struct {
	ClientID     string
	ClientSecret string
}

// Storage persists credentials, tokens and the athlete in SQLite
type Storage struct {
	queries  *db.Queries
	endpoint oauth2.Endpoint
}

// NewStorage creates a Storage refreshing against Strava
func NewStorage(queries *db.Queries) *Storage {
	return &Storage{
		queries:  queries,
		endpoint: StravaEndpoint,
	}
}

// WithEndpoint points token refreshes at another OAuth endpoint (tests)
func (s *Storage) WithEndpoint(endpoint oauth2.Endpoint) *Storage {
	s.endpoint = endpoint
	return s
}

func (s *Storage) oauthConfig(cc *ClientConfig) *oauth2.Config {
	cfg := StravaOAuthConfig(cc.ClientID, cc.ClientSecret)
	cfg.Endpoint = s.endpoint
	return cfg
}

// SaveClientConfig stores client credentials, clearing any tokens
func (s *Storage) SaveClientConfig(ctx context.Context, clientID, clientSecret string) error {
	return s.queries.SaveAuthConfig(ctx, db.SaveAuthConfigParams{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// SaveFullConfig stores credentials, tokens and the athlete when known
func (s *Storage) SaveFullConfig(ctx context.Context, clientID, clientSecret string, tokens *TokenResponse) error {
	err := s.queries.SaveAuthConfig(ctx, db.SaveAuthConfigParams{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AccessToken:  sql.NullString{String: tokens.AccessToken, Valid: true},
		RefreshToken: sql.NullString{String: tokens.RefreshToken, Valid: true},
		ExpiresAt:    sql.NullInt64{Int64: tokens.ExpiresAt, Valid: true},
	})
	if err != nil {
		return err
	}
	if tokens.Athlete != nil {
		return s.SaveAthlete(ctx, *tokens.Athlete)
	}
	return nil
}

// LoadClientConfig loads client credentials
func (s *Storage) LoadClientConfig(ctx context.Context) (*ClientConfig, error) {
	config, err := s.queries.GetAuthConfig(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoClientConfig
		}
		return nil, fmt.Errorf("loading auth config: %w", err)
	}

	return &ClientConfig{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
	}, nil
}

// SaveTokens replaces the stored tokens, keeping the credentials
func (s *Storage) SaveTokens(ctx context.Context, tokens *TokenResponse) error {
	if _, err := s.LoadClientConfig(ctx); err != nil {
		return fmt.Errorf("saving tokens: %w", err)
	}

	return s.queries.UpdateTokens(ctx, db.UpdateTokensParams{
		AccessToken:  sql.NullString{String: tokens.AccessToken, Valid: true},
		RefreshToken: sql.NullString{String: tokens.RefreshToken, Valid: true},
		ExpiresAt:    sql.NullInt64{Int64: tokens.ExpiresAt, Valid: true},
	})
}

// LoadTokens loads the stored tokens
func (s *Storage) LoadTokens(ctx context.Context) (*StoredTokens, error) {
	config, err := s.queries.GetAuthConfig(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("loading auth config: %w", err)
	}

	if !config.AccessToken.Valid {
		return nil, ErrNotAuthenticated
	}

	return &StoredTokens{
		AccessToken:  config.AccessToken.String,
		RefreshToken: config.RefreshToken.String,
		ExpiresAt:    config.ExpiresAt.Int64,
	}, nil
}

// SaveAthlete stores the athlete the tokens belong to
func (s *Storage) SaveAthlete(ctx context.Context, a Athlete) error {
	return s.queries.UpdateAthlete(ctx, db.UpdateAthleteParams{
		AthleteID:      sql.NullInt64{Int64: a.ID, Valid: a.ID != 0},
		AthleteName:    sql.NullString{String: a.Name, Valid: a.Name != ""},
		AthleteProfile: sql.NullString{String: a.Profile, Valid: a.Profile != ""},
	})
}

// LoadAthlete returns the stored athlete; the zero Athlete when unknown
func (s *Storage) LoadAthlete(ctx context.Context) (Athlete, error) {
	config, err := s.queries.GetAuthConfig(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Athlete{}, nil
		}
		return Athlete{}, fmt.Errorf("loading auth config: %w", err)
	}

	return Athlete{
		ID:      config.AthleteID.Int64,
		Name:    config.AthleteName.String,
		Profile: config.AthleteProfile.String,
	}, nil
}

// DeleteTokens removes credentials, tokens and athlete
func (s *Storage) DeleteTokens(ctx context.Context) error {
	return s.queries.DeleteAuthConfig(ctx)
}

// GetValidAccessToken returns a usable access token, refreshing and
// persisting a new token set when the stored one is about to expire
func (s *Storage) GetValidAccessToken(ctx context.Context) (string, error) {
	tokens, err := s.LoadTokens(ctx)
	if err != nil {
		return "", err
	}

	if !IsTokenExpired(tokens.ExpiresAt) {
		return tokens.AccessToken, nil
	}

	logging.Debug("access token expired, refreshing")
	newTokens, err := s.RefreshTokens(ctx)
	if err != nil {
		return "", err
	}
	return newTokens.AccessToken, nil
}

// RefreshTokens exchanges the stored refresh token and persists the result
func (s *Storage) RefreshTokens(ctx context.Context) (*TokenResponse, error) {
	tokens, err := s.LoadTokens(ctx)
	if err != nil {
		return nil, err
	}

	cc, err := s.LoadClientConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading client config for refresh: %w", err)
	}

	newTokens, err := RefreshAccessToken(ctx, s.oauthConfig(cc), tokens.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	if err := s.SaveTokens(ctx, newTokens); err != nil {
		return nil, fmt.Errorf("saving refreshed tokens: %w", err)
	}
	return newTokens, nil
}
