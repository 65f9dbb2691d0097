package db

import (
	"database/sql"
)

type AuthConfig struct {
	ID             int64
	ClientID       string
	ClientSecret   string
	AccessToken    sql.NullString
	RefreshToken   sql.NullString
	ExpiresAt      sql.NullInt64
	AthleteID      sql.NullInt64
	AthleteName    sql.NullString
	AthleteProfile sql.NullString
}

type RefreshLog struct {
	ID            int64
	AthleteID     string
	FetchedAt     int64
	ActivityCount int64
	DurationMs    int64
	Error         sql.NullString
}
