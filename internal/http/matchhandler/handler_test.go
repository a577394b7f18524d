package matchhandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"matchpulsego/internal/services/chat"
	"matchpulsego/internal/services/match"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMatchSvc struct {
	match.IMatchService
	scoreErr  error
	gotScore  []int
	gotStatus string
}

func (f *fakeMatchSvc) UpdateScore(ctx context.Context, id string, home, away, minute int) error {
	f.gotScore = []int{home, away, minute}
	return f.scoreErr
}

func (f *fakeMatchSvc) UpdateStatus(ctx context.Context, id, status string) error {
	f.gotStatus = status
	return nil
}

type fakeChatSvc struct {
	chat.IChatService
	posted *chat.PostMessageInput
}

func (f *fakeChatSvc) PostMessage(ctx context.Context, in chat.PostMessageInput) (*chat.MessageDTO, error) {
	f.posted = &in
	return &chat.MessageDTO{ID: "msg-1", MatchID: in.MatchID, Message: in.Message}, nil
}

type fakeViewers map[string]int

func (f fakeViewers) Size(matchID string) int { return f[matchID] }

func newTestRouter(matchSvc match.IMatchService, chatSvc chat.IChatService, viewers ViewerCounter, rdc *redis.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(matchSvc, chatSvc, viewers, rdc).Register(r)
	return r
}

func TestViewerCount(t *testing.T) {
	r := newTestRouter(&fakeMatchSvc{}, &fakeChatSvc{}, fakeViewers{"m1": 42}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/matches/m1/viewers", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"match_id":"m1","count":42}`, w.Body.String())
}

func TestViewerCount_MirrorFallback(t *testing.T) {
	rdc, rdMock := redismock.NewClientMock()
	rdMock.ExpectHGet("viewers:counts", "m1").SetVal("7")
	r := newTestRouter(&fakeMatchSvc{}, &fakeChatSvc{}, fakeViewers{}, rdc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/matches/m1/viewers", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"match_id":"m1","count":7}`, w.Body.String(),
		"a room on a sibling instance is still reported")
	assert.NoError(t, rdMock.ExpectationsWereMet())
}

func TestViewerCount_LocalSizeWins(t *testing.T) {
	rdc, rdMock := redismock.NewClientMock()
	r := newTestRouter(&fakeMatchSvc{}, &fakeChatSvc{}, fakeViewers{"m1": 3}, rdc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/matches/m1/viewers", nil)
	r.ServeHTTP(w, req)

	assert.JSONEq(t, `{"match_id":"m1","count":3}`, w.Body.String())
	assert.NoError(t, rdMock.ExpectationsWereMet(), "mirror is not consulted for local rooms")
}

func TestUpdateScoreEndpoint(t *testing.T) {
	svc := &fakeMatchSvc{}
	r := newTestRouter(svc, &fakeChatSvc{}, fakeViewers{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/matches/m1/score",
		strings.NewReader(`{"home_score":2,"away_score":1,"minute":54}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []int{2, 1, 54}, svc.gotScore)
}

func TestUpdateScoreEndpoint_NotLive(t *testing.T) {
	svc := &fakeMatchSvc{scoreErr: match.ErrMatchNotLive}
	r := newTestRouter(svc, &fakeChatSvc{}, fakeViewers{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/matches/m1/score",
		strings.NewReader(`{"home_score":2,"away_score":1,"minute":54}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateStatusEndpoint_BadStatus(t *testing.T) {
	r := newTestRouter(&fakeMatchSvc{}, &fakeChatSvc{}, fakeViewers{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/matches/m1/status",
		strings.NewReader(`{"status":"PAUSED"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code, "status outside the enum is rejected by binding")
}

func TestPostMessageEndpoint(t *testing.T) {
	chatSvc := &fakeChatSvc{}
	r := newTestRouter(&fakeMatchSvc{}, chatSvc, fakeViewers{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/matches/m1/messages",
		strings.NewReader(`{"user_id":"u1","user_name":"Sam","message":"what a save"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, chatSvc.posted)
	assert.Equal(t, "m1", chatSvc.posted.MatchID)
	assert.Equal(t, "what a save", chatSvc.posted.Message)
}
