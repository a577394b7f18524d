package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"matchpulsego/internal/rooms"

	"github.com/redis/go-redis/v9"
)

type MatchDTO struct {
	ID        string    `json:"id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	League    string    `json:"league"`
	StartsAt  time.Time `json:"starts_at" example:"2026-08-29T18:00:00Z"`
	Status    string    `json:"status"    example:"LIVE"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	Minute    int       `json:"minute"`
}

// ScoreUpdateDTO is the relay payload for score changes.
type ScoreUpdateDTO struct {
	MatchID   string `json:"match_id"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Minute    int    `json:"minute"`
}

// StatusUpdateDTO is the relay payload for status changes.
type StatusUpdateDTO struct {
	MatchID string `json:"match_id"`
	Status  string `json:"status"`
}

const (
	redisMatchKeyPrefix     = "match:"      // live snapshot hash
	redisMatchLiveKeyPrefix = "match_live:" // TTL key watched for expiry
	redisMatchLockPrefix    = "match_lock:"
)

// Match statuses.
const (
	StatusScheduled = "SCHEDULED"
	StatusLive      = "LIVE"
	StatusHalftime  = "HALFTIME"
	StatusFinished  = "FINISHED"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchNotLive  = errors.New("match not live")
	ErrAlreadyLive   = errors.New("match already live")
	ErrMatchFinished = errors.New("match already finished")
	ErrBadStatus     = errors.New("invalid status")
)

type IMatchService interface {
	StartMatch(ctx context.Context, id string) error
	UpdateScore(ctx context.Context, id string, home, away, minute int) error
	UpdateStatus(ctx context.Context, id, status string) error
	FinishMatch(ctx context.Context, id string) error
	GetMatch(ctx context.Context, id string) (*MatchDTO, error)
	ListMatches(ctx context.Context, status string, limit, offset int) ([]MatchDTO, error)
}

type matchService struct {
	rdc     *redis.Client
	db      *sql.DB
	relay   rooms.Relayer
	liveTTL time.Duration
}

func NewMatchService(rdc *redis.Client, db *sql.DB, relay rooms.Relayer, liveTTL time.Duration) IMatchService {
	return &matchService{
		rdc:     rdc,
		db:      db,
		relay:   relay,
		liveTTL: liveTTL,
	}
}

const statusQ = `SELECT status FROM matches WHERE id = $1`

const startMatchQ = `UPDATE matches SET status = 'LIVE' WHERE id = $1`

// StartMatch flips the row to LIVE, seeds the disposable Redis snapshot
// hash + TTL key, and relays the status change to the room.
func (svc *matchService) StartMatch(ctx context.Context, id string) error {
	var st, home, away, league string
	var startsAt time.Time
	const q = `SELECT status, home_team, away_team, league, starts_at FROM matches WHERE id = $1`
	err := svc.db.QueryRowContext(ctx, q, id).Scan(&st, &home, &away, &league, &startsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMatchNotFound
	}
	if err != nil {
		return err
	}
	switch st {
	case StatusLive, StatusHalftime:
		return ErrAlreadyLive
	case StatusFinished:
		return ErrMatchFinished
	}

	if _, err := svc.db.ExecContext(ctx, startMatchQ, id); err != nil {
		return err
	}

	key := redisMatchKeyPrefix + id
	if err := svc.rdc.HSet(ctx, key,
		"ht", home, "at", away, "lg", league, "ts", startsAt.UTC().Format(time.RFC3339),
		"hs", 0, "as", 0, "min", 0, "st", StatusLive,
	).Err(); err != nil {
		return err
	}
	_ = svc.rdc.Expire(ctx, key, svc.liveTTL).Err()
	if err := svc.rdc.Set(ctx, redisMatchLiveKeyPrefix+id, "1", svc.liveTTL).Err(); err != nil {
		return err
	}

	svc.relay.Relay(rooms.Event{
		MatchID: id,
		Kind:    rooms.KindStatus,
		Payload: StatusUpdateDTO{MatchID: id, Status: StatusLive},
	})
	return nil
}

const updateScoreQ = `UPDATE matches SET home_score = $2, away_score = $3, minute = $4
	 WHERE id = $1 AND status IN ('LIVE','HALFTIME')`

// UpdateScore commits the new score, mirrors it into the live snapshot,
// then relays match:score to the room.
func (svc *matchService) UpdateScore(ctx context.Context, id string, home, away, minute int) error {
	res, err := svc.db.ExecContext(ctx, updateScoreQ, id, home, away, minute)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMatchNotLive
	}

	if err := svc.rdc.HSet(ctx, redisMatchKeyPrefix+id,
		"hs", home, "as", away, "min", minute,
	).Err(); err != nil {
		return err
	}

	svc.relay.Relay(rooms.Event{
		MatchID: id,
		Kind:    rooms.KindScore,
		Payload: ScoreUpdateDTO{MatchID: id, HomeScore: home, AwayScore: away, Minute: minute},
	})
	return nil
}

const updateStatusQ = `UPDATE matches SET status = $2
	 WHERE id = $1 AND status <> 'FINISHED'`

// UpdateStatus moves a match between non-terminal statuses; FINISHED
// goes through FinishMatch so cleanup is never skipped.
func (svc *matchService) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case StatusScheduled, StatusLive, StatusHalftime:
	case StatusFinished:
		return svc.FinishMatch(ctx, id)
	default:
		return ErrBadStatus
	}

	res, err := svc.db.ExecContext(ctx, updateStatusQ, id, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var st string
		if err := svc.db.QueryRowContext(ctx, statusQ, id).Scan(&st); errors.Is(err, sql.ErrNoRows) {
			return ErrMatchNotFound
		}
		return ErrMatchFinished
	}

	_ = svc.rdc.HSet(ctx, redisMatchKeyPrefix+id, "st", status).Err()

	svc.relay.Relay(rooms.Event{
		MatchID: id,
		Kind:    rooms.KindStatus,
		Payload: StatusUpdateDTO{MatchID: id, Status: status},
	})
	return nil
}

const finishMatchQ = `UPDATE matches SET status = 'FINISHED'
	 WHERE id = $1 AND status <> 'FINISHED'`

// FinishMatch is called by the key-expiry watcher and by UpdateStatus.
func (svc *matchService) FinishMatch(ctx context.Context, id string) error {
	// distributed, 5 s lock – avoids duplicate finalisations
	lockKey := redisMatchLockPrefix + id
	ok, _ := svc.rdc.SetNX(ctx, lockKey, 1, 5*time.Second).Result()
	if !ok {
		return nil // another instance is already finishing the same match
	}
	defer svc.rdc.Del(ctx, lockKey)

	res, err := svc.db.ExecContext(ctx, finishMatchQ, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // already finished, nothing to announce
	}

	_ = svc.rdc.Del(ctx, redisMatchKeyPrefix+id, redisMatchLiveKeyPrefix+id).Err()

	svc.relay.Relay(rooms.Event{
		MatchID: id,
		Kind:    rooms.KindStatus,
		Payload: StatusUpdateDTO{MatchID: id, Status: StatusFinished},
	})
	return nil
}

const getMatchQ = `SELECT id, home_team, away_team, league, starts_at,
	              status, home_score, away_score, minute
	         FROM matches WHERE id = $1`

func (svc *matchService) GetMatch(ctx context.Context, id string) (*MatchDTO, error) {
	// 1. Fast-path - if it is LIVE, serve directly from Redis
	snap, _ := svc.rdc.HGetAll(ctx, redisMatchKeyPrefix+id).Result()
	if st, ok := snap["st"]; ok && st != "" {
		startsAt, _ := time.Parse(time.RFC3339, snap["ts"])
		return &MatchDTO{
			ID:        id,
			HomeTeam:  snap["ht"],
			AwayTeam:  snap["at"],
			League:    snap["lg"],
			StartsAt:  startsAt,
			Status:    st,
			HomeScore: atoi(snap["hs"]),
			AwayScore: atoi(snap["as"]),
			Minute:    atoi(snap["min"]),
		}, nil
	}

	// 2. Otherwise go to Postgres
	row := svc.db.QueryRowContext(ctx, getMatchQ, id)
	dto := &MatchDTO{}
	if err := row.Scan(&dto.ID, &dto.HomeTeam, &dto.AwayTeam, &dto.League,
		&dto.StartsAt, &dto.Status,
		&dto.HomeScore, &dto.AwayScore, &dto.Minute); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("match %s not found", id)
		}
		return nil, err
	}
	return dto, nil
}

const listMatchesQ = `SELECT id, home_team, away_team, league, starts_at,
	              status, home_score, away_score, minute
	         FROM matches
	        ORDER BY starts_at DESC LIMIT $1 OFFSET $2`

const listMatchesByStatusQ = `SELECT id, home_team, away_team, league, starts_at,
	              status, home_score, away_score, minute
	         FROM matches WHERE status = $1
	        ORDER BY starts_at DESC LIMIT $2 OFFSET $3`

func (svc *matchService) ListMatches(ctx context.Context, st string,
	limit, offset int) ([]MatchDTO, error) {

	if limit == 0 {
		limit = 10
	}
	var (
		rows *sql.Rows
		err  error
	)
	if st == "" {
		rows, err = svc.db.QueryContext(ctx, listMatchesQ, limit, offset)
	} else {
		rows, err = svc.db.QueryContext(ctx, listMatchesByStatusQ, st, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]MatchDTO, 0, limit)
	for rows.Next() {
		var dto MatchDTO
		if err := rows.Scan(&dto.ID, &dto.HomeTeam, &dto.AwayTeam, &dto.League,
			&dto.StartsAt, &dto.Status,
			&dto.HomeScore, &dto.AwayScore, &dto.Minute); err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, rows.Err()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
