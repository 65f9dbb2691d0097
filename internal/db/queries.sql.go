package db

import (
	"context"
	"database/sql"
)

const getAuthConfig = `-- name: GetAuthConfig :one
SELECT id, client_id, client_secret, access_token, refresh_token, expires_at,
       athlete_id, athlete_name, athlete_profile
FROM auth_config
WHERE id = 1
`

func (q *Queries) GetAuthConfig(ctx context.Context) (AuthConfig, error) {
	row := q.db.QueryRowContext(ctx, getAuthConfig)
	var i AuthConfig
	err := row.Scan(
		&i.ID,
		&i.ClientID,
		&i.ClientSecret,
		&i.AccessToken,
		&i.RefreshToken,
		&i.ExpiresAt,
		&i.AthleteID,
		&i.AthleteName,
		&i.AthleteProfile,
	)
	return i, err
}

const saveAuthConfig = `-- name: SaveAuthConfig :exec
INSERT INTO auth_config (id, client_id, client_secret, access_token, refresh_token, expires_at, updated_at)
VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (id) DO UPDATE SET
    client_id = excluded.client_id,
    client_secret = excluded.client_secret,
    access_token = excluded.access_token,
    refresh_token = excluded.refresh_token,
    expires_at = excluded.expires_at,
    updated_at = CURRENT_TIMESTAMP
`

type SaveAuthConfigParams struct {
	ClientID     string
	ClientSecret string
	AccessToken  sql.NullString
	RefreshToken sql.NullString
	ExpiresAt    sql.NullInt64
}

func (q *Queries) SaveAuthConfig(ctx context.Context, arg SaveAuthConfigParams) error {
	_, err := q.db.ExecContext(ctx, saveAuthConfig,
		arg.ClientID,
		arg.ClientSecret,
		arg.AccessToken,
		arg.RefreshToken,
		arg.ExpiresAt,
	)
	return err
}

const updateTokens = `-- name: UpdateTokens :exec
UPDATE auth_config
SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = 1
`

type UpdateTokensParams struct {
	AccessToken  sql.NullString
	RefreshToken sql.NullString
	ExpiresAt    sql.NullInt64
}

func (q *Queries) UpdateTokens(ctx context.Context, arg UpdateTokensParams) error {
	_, err := q.db.ExecContext(ctx, updateTokens, arg.AccessToken, arg.RefreshToken, arg.ExpiresAt)
	return err
}

const updateAthlete = `-- name: UpdateAthlete :exec
UPDATE auth_config
SET athlete_id = ?, athlete_name = ?, athlete_profile = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = 1
`

type UpdateAthleteParams struct {
	AthleteID      sql.NullInt64
	AthleteName    sql.NullString
	AthleteProfile sql.NullString
}

func (q *Queries) UpdateAthlete(ctx context.Context, arg UpdateAthleteParams) error {
	_, err := q.db.ExecContext(ctx, updateAthlete, arg.AthleteID, arg.AthleteName, arg.AthleteProfile)
	return err
}

const deleteAuthConfig = `-- name: DeleteAuthConfig :exec
DELETE FROM auth_config WHERE id = 1
`

func (q *Queries) DeleteAuthConfig(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAuthConfig)
	return err
}

const insertRefreshLog = `-- name: InsertRefreshLog :exec
INSERT INTO refresh_log (athlete_id, fetched_at, activity_count, duration_ms, error)
VALUES (?, ?, ?, ?, ?)
`

type InsertRefreshLogParams struct {
	AthleteID     string
	FetchedAt     int64
	ActivityCount int64
	DurationMs    int64
	Error         sql.NullString
}

func (q *Queries) InsertRefreshLog(ctx context.Context, arg InsertRefreshLogParams) error {
	_, err := q.db.ExecContext(ctx, insertRefreshLog,
		arg.AthleteID,
		arg.FetchedAt,
		arg.ActivityCount,
		arg.DurationMs,
		arg.Error,
	)
	return err
}

const getLastRefresh = `-- name: GetLastRefresh :one
SELECT id, athlete_id, fetched_at, activity_count, duration_ms, error
FROM refresh_log
WHERE athlete_id = ? AND error IS NULL
ORDER BY fetched_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetLastRefresh(ctx context.Context, athleteID string) (RefreshLog, error) {
	row := q.db.QueryRowContext(ctx, getLastRefresh, athleteID)
	var i RefreshLog
	err := row.Scan(
		&i.ID,
		&i.AthleteID,
		&i.FetchedAt,
		&i.ActivityCount,
		&i.DurationMs,
		&i.Error,
	)
	return i, err
}

const countRefreshLog = `-- name: CountRefreshLog :one
SELECT COUNT(*) FROM refresh_log
`

func (q *Queries) CountRefreshLog(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countRefreshLog)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const pruneRefreshLog = `-- name: PruneRefreshLog :exec
DELETE FROM refresh_log WHERE fetched_at < ?
`

func (q *Queries) PruneRefreshLog(ctx context.Context, before int64) error {
	_, err := q.db.ExecContext(ctx, pruneRefreshLog, before)
	return err
}
