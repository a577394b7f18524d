package matchhandler

import (
	"errors"
	"net/http"

	"matchpulsego/internal/services/chat"
	"matchpulsego/internal/services/match"
	"matchpulsego/internal/syncviewers"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// ViewerCounter is the slice of the realtime facade the REST layer
// needs: the live viewer count for one match.
type ViewerCounter interface {
	Size(matchID string) int
}

type Handler struct {
	matchSvc match.IMatchService
	chatSvc  chat.IChatService
	viewers  ViewerCounter
	rdc      *redis.Client
}

func New(matchSvc match.IMatchService, chatSvc chat.IChatService, viewers ViewerCounter, rdc *redis.Client) *Handler {
	return &Handler{matchSvc: matchSvc, chatSvc: chatSvc, viewers: viewers, rdc: rdc}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/matches", h.list)
	r.GET("/matches/:id", h.info)
	r.GET("/matches/:id/viewers", h.viewerCount)
	r.POST("/matches/:id/start", h.start)
	r.POST("/matches/:id/score", h.score)
	r.POST("/matches/:id/status", h.status)
	r.POST("/matches/:id/messages", h.postMessage)
	r.POST("/messages/:id/react", h.react)
}

// @Summary		Get match details
// @Description	Returns full information about a single match.
// @Tags			Matches
// @Param			id	path		string	true	"Match ID"	default(m123)
// @Success		200	{object}	match.MatchDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/matches/{id} [get]
func (h *Handler) info(c *gin.Context) {
	dto, err := h.matchSvc.GetMatch(c, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto)
}

// @Summary		List matches
// @Description	Retrieves a paginated list of matches, optionally filtered by status.
// @Tags			Matches
// @Param			status	query		string	false	"Status filter"			Enums(SCHEDULED,LIVE,HALFTIME,FINISHED)
// @Param			limit	query		int		false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		match.MatchDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/matches [get]
func (h *Handler) list(c *gin.Context) {
	var q ListMatchesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.matchSvc.ListMatches(c, q.Status, q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Current viewer count
// @Description	Number of connections watching this match right now, across instances.
// @Tags			Matches
// @Param			id	path		string	true	"Match ID"	default(m123)
// @Success		200	{object}	ViewersResponse
// @Router			/matches/{id}/viewers [get]
func (h *Handler) viewerCount(c *gin.Context) {
	matchID := c.Param("id")
	n := h.viewers.Size(matchID)
	if n == 0 && h.rdc != nil {
		// The room may live on a sibling instance; ask the mirror.
		n = syncviewers.Lookup(c.Request.Context(), h.rdc, matchID)
	}
	c.JSON(http.StatusOK, ViewersResponse{
		MatchID: matchID,
		Count:   n,
	})
}

// @Summary		Start a match
// @Description	Marks a scheduled match live and begins broadcasting its room.
// @Tags			Matches
// @Param			id	path	string	true	"Match ID"	default(m123)
// @Success		202
// @Failure		409	{object}	ErrorResponse
// @Router			/matches/{id}/start [post]
func (h *Handler) start(ginCtx *gin.Context) {
	if err := h.matchSvc.StartMatch(ginCtx.Request.Context(), ginCtx.Param("id")); err != nil {
		if errors.Is(err, match.ErrMatchNotFound) {
			ginCtx.JSON(http.StatusNotFound, &ErrorResponse{Error: err.Error()})
			return
		}
		ginCtx.JSON(http.StatusConflict, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Update the score
// @Description	Called by the match-sync job after committing a score change.
// @Tags			Matches
// @Param			id		path	string			true	"Match ID"	default(m123)
// @Param			body	body	UpdateScoreBody	true	"Score payload"
// @Success		202
// @Failure		400	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/matches/{id}/score [post]
func (h *Handler) score(ginCtx *gin.Context) {
	var body UpdateScoreBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.matchSvc.UpdateScore(ginCtx.Request.Context(),
		ginCtx.Param("id"),
		body.HomeScore,
		body.AwayScore,
		body.Minute,
	); err != nil {
		ginCtx.JSON(http.StatusConflict, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Update the status
// @Description	Moves a match between SCHEDULED/LIVE/HALFTIME/FINISHED.
// @Tags			Matches
// @Param			id		path	string				true	"Match ID"	default(m123)
// @Param			body	body	UpdateStatusBody	true	"Status payload"
// @Success		202
// @Failure		400	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/matches/{id}/status [post]
func (h *Handler) status(ginCtx *gin.Context) {
	var body UpdateStatusBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.matchSvc.UpdateStatus(ginCtx.Request.Context(), ginCtx.Param("id"), body.Status); err != nil {
		ginCtx.JSON(http.StatusConflict, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

// @Summary		Post a chat message
// @Description	Commits the message, then relays it to everyone in the match room.
// @Tags			Chat
// @Param			id		path		string			true	"Match ID"	default(m123)
// @Param			body	body		PostMessageBody	true	"Message payload"
// @Success		201		{object}	chat.MessageDTO
// @Failure		400		{object}	ErrorResponse
// @Router			/matches/{id}/messages [post]
func (h *Handler) postMessage(ginCtx *gin.Context) {
	var body PostMessageBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	dto, err := h.chatSvc.PostMessage(ginCtx.Request.Context(), chat.PostMessageInput{
		MatchID:         ginCtx.Param("id"),
		UserID:          body.UserID,
		UserName:        body.UserName,
		Message:         body.Message,
		ParentMessageID: body.ParentMessageID,
	})
	if err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusCreated, dto)
}

// @Summary		Toggle a reaction
// @Description	Adds or removes the user's emoji reaction and relays the updated list.
// @Tags			Chat
// @Param			id		path		string		true	"Message ID"
// @Param			body	body		ReactBody	true	"Reaction payload"
// @Success		200		{object}	chat.ReactionUpdateDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Router			/messages/{id}/react [post]
func (h *Handler) react(ginCtx *gin.Context) {
	var body ReactBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	dto, err := h.chatSvc.ToggleReaction(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.UserID, body.Emoji)
	if err != nil {
		if errors.Is(err, chat.ErrMessageNotFound) {
			ginCtx.JSON(http.StatusNotFound, &ErrorResponse{Error: err.Error()})
			return
		}
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, dto)
}
