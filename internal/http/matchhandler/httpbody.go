package matchhandler

type UpdateScoreBody struct {
	HomeScore int `json:"home_score" binding:"gte=0"          example:"2"`
	AwayScore int `json:"away_score" binding:"gte=0"          example:"1"`
	Minute    int `json:"minute"     binding:"gte=0,lte=150"  example:"54"`
} // @name UpdateScoreRequest

type UpdateStatusBody struct {
	Status string `json:"status" binding:"required,oneof=SCHEDULED LIVE HALFTIME FINISHED" example:"HALFTIME"`
} // @name UpdateStatusRequest

type PostMessageBody struct {
	UserID          string `json:"user_id"   binding:"required"        example:"user123"`
	UserName        string `json:"user_name" binding:"required"        example:"Sam"`
	Message         string `json:"message"   binding:"required,max=500"`
	ParentMessageID string `json:"parent_message_id,omitempty"`
} // @name PostMessageRequest

type ReactBody struct {
	UserID string `json:"user_id" binding:"required" example:"user123"`
	Emoji  string `json:"emoji"   binding:"required" example:"🔥"`
} // @name ReactRequest

type ViewersResponse struct {
	MatchID string `json:"match_id"`
	Count   int    `json:"count"`
} // @name ViewersResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListMatchesQuery struct {
	Status string `form:"status"  binding:"omitempty,oneof=SCHEDULED LIVE HALFTIME FINISHED"`
	Limit  int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListMatchesQuery
