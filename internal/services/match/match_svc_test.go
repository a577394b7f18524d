package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"matchpulsego/internal/rooms"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelayer struct {
	mu     sync.Mutex
	events []rooms.Event
}

func (f *fakeRelayer) Relay(ev rooms.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func newMocks(t *testing.T) (sqlmock.Sqlmock, redismock.ClientMock, IMatchService, *fakeRelayer) {
	t.Helper()
	db, dbMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rdc, rdMock := redismock.NewClientMock()
	relay := &fakeRelayer{}
	return dbMock, rdMock, NewMatchService(rdc, db, relay, 150*time.Minute), relay
}

func TestUpdateScore(t *testing.T) {
	dbMock, rdMock, svc, relay := newMocks(t)

	dbMock.ExpectExec(updateScoreQ).
		WithArgs("m1", 2, 1, 54).
		WillReturnResult(sqlmock.NewResult(0, 1))
	rdMock.ExpectHSet("match:m1", "hs", 2, "as", 1, "min", 54).SetVal(3)

	err := svc.UpdateScore(context.Background(), "m1", 2, 1, 54)
	require.NoError(t, err)

	require.Len(t, relay.events, 1)
	assert.Equal(t, rooms.KindScore, relay.events[0].Kind)
	assert.Equal(t,
		ScoreUpdateDTO{MatchID: "m1", HomeScore: 2, AwayScore: 1, Minute: 54},
		relay.events[0].Payload,
	)
	assert.NoError(t, dbMock.ExpectationsWereMet())
	assert.NoError(t, rdMock.ExpectationsWereMet())
}

func TestUpdateScore_NotLive(t *testing.T) {
	dbMock, _, svc, relay := newMocks(t)

	dbMock.ExpectExec(updateScoreQ).
		WithArgs("m1", 2, 1, 54).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.UpdateScore(context.Background(), "m1", 2, 1, 54)
	assert.ErrorIs(t, err, ErrMatchNotLive)
	assert.Empty(t, relay.events)
}

func TestUpdateStatus(t *testing.T) {
	dbMock, rdMock, svc, relay := newMocks(t)

	dbMock.ExpectExec(updateStatusQ).
		WithArgs("m1", StatusHalftime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	rdMock.ExpectHSet("match:m1", "st", StatusHalftime).SetVal(1)

	err := svc.UpdateStatus(context.Background(), "m1", StatusHalftime)
	require.NoError(t, err)

	require.Len(t, relay.events, 1)
	assert.Equal(t, rooms.KindStatus, relay.events[0].Kind)
	assert.Equal(t,
		StatusUpdateDTO{MatchID: "m1", Status: StatusHalftime},
		relay.events[0].Payload,
	)
}

func TestUpdateStatus_Invalid(t *testing.T) {
	_, _, svc, relay := newMocks(t)

	err := svc.UpdateStatus(context.Background(), "m1", "PAUSED")
	assert.ErrorIs(t, err, ErrBadStatus)
	assert.Empty(t, relay.events)
}

func TestStartMatch(t *testing.T) {
	dbMock, rdMock, svc, relay := newMocks(t)

	startsAt := time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC)
	dbMock.ExpectQuery(`SELECT status, home_team, away_team, league, starts_at FROM matches WHERE id = $1`).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "home_team", "away_team", "league", "starts_at"}).
			AddRow(StatusScheduled, "Arsenal", "Spurs", "EPL", startsAt))
	dbMock.ExpectExec(startMatchQ).
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	rdMock.ExpectHSet("match:m1",
		"ht", "Arsenal", "at", "Spurs", "lg", "EPL", "ts", "2026-08-29T18:00:00Z",
		"hs", 0, "as", 0, "min", 0, "st", StatusLive,
	).SetVal(8)
	rdMock.ExpectExpire("match:m1", 150*time.Minute).SetVal(true)
	rdMock.ExpectSet("match_live:m1", "1", 150*time.Minute).SetVal("OK")

	err := svc.StartMatch(context.Background(), "m1")
	require.NoError(t, err)

	require.Len(t, relay.events, 1)
	assert.Equal(t, StatusUpdateDTO{MatchID: "m1", Status: StatusLive}, relay.events[0].Payload)
	assert.NoError(t, rdMock.ExpectationsWereMet())
}

func TestStartMatch_AlreadyLive(t *testing.T) {
	dbMock, _, svc, _ := newMocks(t)

	dbMock.ExpectQuery(`SELECT status, home_team, away_team, league, starts_at FROM matches WHERE id = $1`).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "home_team", "away_team", "league", "starts_at"}).
			AddRow(StatusLive, "Arsenal", "Spurs", "EPL", time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC)))

	err := svc.StartMatch(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrAlreadyLive)
}

func TestFinishMatch(t *testing.T) {
	dbMock, rdMock, svc, relay := newMocks(t)

	rdMock.ExpectSetNX("match_lock:m1", 1, 5*time.Second).SetVal(true)
	dbMock.ExpectExec(finishMatchQ).
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	rdMock.ExpectDel("match:m1", "match_live:m1").SetVal(2)
	rdMock.ExpectDel("match_lock:m1").SetVal(1)

	err := svc.FinishMatch(context.Background(), "m1")
	require.NoError(t, err)

	require.Len(t, relay.events, 1)
	assert.Equal(t, StatusUpdateDTO{MatchID: "m1", Status: StatusFinished}, relay.events[0].Payload)
}

func TestFinishMatch_LockHeldElsewhere(t *testing.T) {
	_, rdMock, svc, relay := newMocks(t)

	rdMock.ExpectSetNX("match_lock:m1", 1, 5*time.Second).SetVal(false)

	err := svc.FinishMatch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Empty(t, relay.events, "a lock miss must not re-announce the finish")
}

func TestGetMatch_LiveFromRedis(t *testing.T) {
	_, rdMock, svc, _ := newMocks(t)

	rdMock.ExpectHGetAll("match:m1").SetVal(map[string]string{
		"ht": "Arsenal", "at": "Spurs", "lg": "EPL", "ts": "2026-08-29T18:00:00Z",
		"hs": "1", "as": "0", "min": "23", "st": StatusLive,
	})

	dto, err := svc.GetMatch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, &MatchDTO{
		ID: "m1", HomeTeam: "Arsenal", AwayTeam: "Spurs",
		League: "EPL", StartsAt: time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC),
		Status: StatusLive, HomeScore: 1, AwayScore: 0, Minute: 23,
	}, dto)
}

func TestGetMatch_FallsBackToPostgres(t *testing.T) {
	dbMock, rdMock, svc, _ := newMocks(t)

	startsAt := time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC)
	rdMock.ExpectHGetAll("match:m1").SetVal(map[string]string{})
	dbMock.ExpectQuery(getMatchQ).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "home_team", "away_team", "league", "starts_at",
			"status", "home_score", "away_score", "minute",
		}).AddRow("m1", "Arsenal", "Spurs", "EPL", startsAt, StatusScheduled, 0, 0, 0))

	dto, err := svc.GetMatch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, dto.Status)
	assert.Equal(t, startsAt, dto.StartsAt)
}

func TestGetMatch_NotFound(t *testing.T) {
	dbMock, rdMock, svc, _ := newMocks(t)

	rdMock.ExpectHGetAll("match:ghost").SetVal(map[string]string{})
	dbMock.ExpectQuery(getMatchQ).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "home_team", "away_team", "league", "starts_at",
			"status", "home_score", "away_score", "minute",
		}))

	_, err := svc.GetMatch(context.Background(), "ghost")
	assert.ErrorContains(t, err, "not found")
}

func TestListMatches(t *testing.T) {
	dbMock, _, svc, _ := newMocks(t)

	startsAt := time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC)
	dbMock.ExpectQuery(listMatchesByStatusQ).
		WithArgs(StatusLive, 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "home_team", "away_team", "league", "starts_at",
			"status", "home_score", "away_score", "minute",
		}).AddRow("m1", "Arsenal", "Spurs", "EPL", startsAt, StatusLive, 1, 0, 40))

	out, err := svc.ListMatches(context.Background(), StatusLive, 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "m1", out[0].ID)
}
