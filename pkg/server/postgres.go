package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/tokens"
)

// Schema holds the oauth_sessions table definition. Hosts run it at boot
// or through their own migration tooling.
const Schema = `
create table if not exists oauth_sessions (
	id text primary key,
	response_type text not null,
	client_id text not null,
	redirect_uri text not null,
	scope text not null,
	state text not null,
	relay_state text not null,
	created_at timestamptz not null,
	authorization_code text unique,
	authorization_code_expiration timestamptz,
	authorization_granted boolean not null default false,
	access_token text unique,
	access_token_expiration timestamptz,
	bsn text not null default ''
)`

const sessionColumns = `id, response_type, client_id, redirect_uri, scope, state, relay_state,
	created_at, authorization_code, authorization_code_expiration, authorization_granted,
	access_token, access_token_expiration, bsn`

// PostgresSessionStore persists sessions in PostgreSQL. The single-use
// guarantee of RedeemCode rests on a conditional update keyed on the code
// column still being set.
type PostgresSessionStore struct {
	db *sql.DB
}

var _ SessionStore = (*PostgresSessionStore)(nil)

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

// OpenPostgresSessionStore connects through the pgx stdlib driver and
// ensures the schema exists.
func OpenPostgresSessionStore(ctx context.Context, dsn string) (*PostgresSessionStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &PostgresSessionStore{db: db}, nil
}

func (s *PostgresSessionStore) CreateSession(ctx context.Context, responseType, clientID, redirectURI, scope, state string) (*Session, error) {
	session := &Session{
		ID:           uuid.NewString(),
		ResponseType: responseType,
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		Scope:        scope,
		State:        state,
		RelayState:   uuid.NewString(),
		CreatedAt:    time.Now(),
	}

	_, err := s.db.ExecContext(ctx,
		`insert into oauth_sessions (id, response_type, client_id, redirect_uri, scope, state, relay_state, created_at)
		 values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.ResponseType, session.ClientID, session.RedirectURI,
		session.Scope, session.State, session.RelayState, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return session, nil
}

func (s *PostgresSessionStore) GetSessionByID(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from oauth_sessions where id = $1`, id)
	return scanSession(row)
}

func (s *PostgresSessionStore) GetSessionByCode(ctx context.Context, code string) (*Session, error) {
	if code == "" {
		return nil, ErrSessionNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from oauth_sessions where authorization_code = $1`, code)
	return scanSession(row)
}

func (s *PostgresSessionStore) SaveSession(ctx context.Context, session *Session) (*Session, error) {
	result, err := s.db.ExecContext(ctx,
		`update oauth_sessions set
			authorization_code = $2,
			authorization_code_expiration = $3,
			authorization_granted = $4,
			access_token = $5,
			access_token_expiration = $6,
			bsn = $7
		 where id = $1`,
		session.ID,
		nullString(session.AuthorizationCode), nullTime(session.AuthorizationCodeExpiration),
		session.AuthorizationGranted,
		nullString(session.AccessToken), nullTime(session.AccessTokenExpiration),
		session.BSN,
	)
	if err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *PostgresSessionStore) RedeemCode(ctx context.Context, code string, accessToken tokens.Token) (*Session, error) {
	if code == "" {
		return nil, ErrSessionNotFound
	}

	// conditional update: only the first redemption finds the code still set
	row := s.db.QueryRowContext(ctx,
		`update oauth_sessions set
			authorization_code = null,
			access_token = $2,
			access_token_expiration = $3
		 where authorization_code = $1
		 returning `+sessionColumns,
		code, accessToken.Value, accessToken.Expiration,
	)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*Session, error) {
	var (
		session        Session
		code, token    sql.NullString
		codeExpiration sql.NullTime
		tokenExpiration sql.NullTime
	)
	err := row.Scan(
		&session.ID, &session.ResponseType, &session.ClientID, &session.RedirectURI,
		&session.Scope, &session.State, &session.RelayState, &session.CreatedAt,
		&code, &codeExpiration, &session.AuthorizationGranted,
		&token, &tokenExpiration, &session.BSN,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	session.AuthorizationCode = code.String
	session.AuthorizationCodeExpiration = codeExpiration.Time
	session.AccessToken = token.String
	session.AccessTokenExpiration = tokenExpiration.Time
	return &session, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullTime(value time.Time) sql.NullTime {
	return sql.NullTime{Time: value, Valid: !value.IsZero()}
}
