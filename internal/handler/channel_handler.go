package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "focusbot/internal/errors"
	"focusbot/internal/middleware"
	"focusbot/internal/pomodoro"
	"focusbot/internal/service"
)

const maxChannelIDLength = 64

type ChannelHandler struct {
	pomodoroService *service.PomodoroService
}

type commandRequest struct {
	Command string `json:"command"`
	Args    string `json:"args"`
}

type reactionRequest struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

func NewChannelHandler(pomodoroService *service.PomodoroService) *ChannelHandler {
	return &ChannelHandler{pomodoroService: pomodoroService}
}

func (h *ChannelHandler) Command(c *gin.Context) {
	channelID, ok := channelParam(c)
	if !ok {
		return
	}
	member := middleware.CurrentMember(c)
	if member == nil {
		writeError(c, apperrors.Unauthorized(""))
		return
	}

	var req commandRequest
	if !bindJSON(c, &req) {
		return
	}

	reply, apiErr := h.pomodoroService.Execute(c.Request.Context(), channelID, *member, req.Command, req.Args)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (h *ChannelHandler) React(c *gin.Context) {
	if _, ok := channelParam(c); !ok {
		return
	}
	member := middleware.CurrentMember(c)
	if member == nil {
		writeError(c, apperrors.Unauthorized(""))
		return
	}

	var req reactionRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.MessageID == "" || req.Emoji == "" {
		writeError(c, apperrors.BadRequest("invalid_reaction", "messageId and emoji are required"))
		return
	}

	reply, apiErr := h.pomodoroService.React(c.Request.Context(), *member, req.MessageID, req.Emoji)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (h *ChannelHandler) GetSession(c *gin.Context) {
	channelID, ok := channelParam(c)
	if !ok {
		return
	}

	view, apiErr := h.pomodoroService.Session(channelID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": view})
}

func (h *ChannelHandler) GetMessages(c *gin.Context) {
	channelID, ok := channelParam(c)
	if !ok {
		return
	}

	var after int64
	if raw := c.Query("after"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(c, apperrors.BadRequest("invalid_after", "after must be a non-negative integer"))
			return
		}
		after = parsed
	}

	c.JSON(http.StatusOK, gin.H{"messages": h.pomodoroService.Messages(channelID, after)})
}

// Commands lists the available commands, for help screens.
func (h *ChannelHandler) Commands(c *gin.Context) {
	type commandInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Arguments   string `json:"arguments,omitempty"`
		Emoji       string `json:"emoji,omitempty"`
		AdminOnly   bool   `json:"adminOnly,omitempty"`
	}

	commands := pomodoro.Commands()
	out := make([]commandInfo, 0, len(commands))
	for _, command := range commands {
		spec, _ := pomodoro.Spec(command)
		out = append(out, commandInfo{
			Name:        string(command),
			Description: spec.Description,
			Arguments:   spec.Arguments,
			Emoji:       spec.Emoji,
			AdminOnly:   spec.AdminOnly,
		})
	}
	c.JSON(http.StatusOK, gin.H{"commands": out})
}

func channelParam(c *gin.Context) (string, bool) {
	channelID := strings.TrimSpace(c.Param("channelID"))
	if channelID == "" || len(channelID) > maxChannelIDLength {
		writeError(c, apperrors.BadRequest("invalid_channel", "invalid channel id"))
		return "", false
	}
	return channelID, true
}
