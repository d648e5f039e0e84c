package server_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gidsopenstandaarden/medmij-oauth/pkg/server"
	"github.com/gidsopenstandaarden/medmij-oauth/pkg/tokens"
)

var sessionColumns = []string{
	"id", "response_type", "client_id", "redirect_uri", "scope", "state", "relay_state",
	"created_at", "authorization_code", "authorization_code_expiration", "authorization_granted",
	"access_token", "access_token_expiration", "bsn",
}

func sessionRow(id, code, token string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(sessionColumns).AddRow(
		id, "code", "oauthclient.local", "https://oauthclient.local/oauth/cb", "1", "abcdef12345", "relay-1",
		now, nullableString(code), nullableTime(now.Add(15*time.Minute)), code != "",
		nullableString(token), nullableTime(now.Add(15*time.Minute)), "",
	)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value
}

func newMockStore(t *testing.T) (*server.PostgresSessionStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return server.NewPostgresSessionStore(db), mock
}

func TestPostgresCreateSession(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("insert into oauth_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := store.CreateSession(context.Background(),
		"code", "oauthclient.local", "https://oauthclient.local/oauth/cb", "1", "abcdef12345")
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.RelayState)
	assert.Equal(t, "oauthclient.local", session.ClientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSessionByID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select (.+) from oauth_sessions where id").
		WithArgs("session-1").
		WillReturnRows(sessionRow("session-1", "code-1", ""))

	session, err := store.GetSessionByID(context.Background(), "session-1")
	require.NoError(t, err)

	assert.Equal(t, "session-1", session.ID)
	assert.Equal(t, "code-1", session.AuthorizationCode)
	assert.True(t, session.AuthorizationGranted)
	assert.Empty(t, session.AccessToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSessionByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select (.+) from oauth_sessions where id").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetSessionByID(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, server.ErrSessionNotFound)
}

func TestPostgresGetSessionByCodeEmpty(t *testing.T) {
	store, _ := newMockStore(t)

	// an empty code must never hit the database: it would match cleared rows
	_, err := store.GetSessionByCode(context.Background(), "")
	assert.ErrorIs(t, err, server.ErrSessionNotFound)
}

func TestPostgresSaveSessionNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("update oauth_sessions set").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.SaveSession(context.Background(), &server.Session{ID: "no-such-id"})
	assert.ErrorIs(t, err, server.ErrSessionNotFound)
}

func TestPostgresRedeemCode(t *testing.T) {
	store, mock := newMockStore(t)
	accessToken := tokens.New(tokens.DefaultLifetime)

	mock.ExpectQuery("update oauth_sessions set").
		WithArgs("code-1", accessToken.Value, accessToken.Expiration).
		WillReturnRows(sessionRow("session-1", "", accessToken.Value))

	session, err := store.RedeemCode(context.Background(), "code-1", accessToken)
	require.NoError(t, err)

	assert.Empty(t, session.AuthorizationCode)
	assert.Equal(t, accessToken.Value, session.AccessToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRedeemCodeLostRace(t *testing.T) {
	store, mock := newMockStore(t)

	// the conditional update matched nothing: the code was already cleared
	mock.ExpectQuery("update oauth_sessions set").
		WillReturnError(sql.ErrNoRows)

	_, err := store.RedeemCode(context.Background(), "code-1", tokens.New(tokens.DefaultLifetime))
	assert.ErrorIs(t, err, server.ErrSessionNotFound)
}

func TestPostgresRedeemCodeEmpty(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.RedeemCode(context.Background(), "", tokens.New(tokens.DefaultLifetime))
	assert.ErrorIs(t, err, server.ErrSessionNotFound)
}
