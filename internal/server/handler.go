package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haftomg96/MVP-chat-app/internal/auth"
	"github.com/haftomg96/MVP-chat-app/internal/models"
	"github.com/haftomg96/MVP-chat-app/internal/service"
	"github.com/rs/zerolog/log"
)

// Handler holds the REST endpoints; business rules live in the services.
type Handler struct {
	userSvc    *service.UserService
	contactSvc *service.ContactService
	msgSvc     *service.MessageService
}

func NewHandler(userSvc *service.UserService, contactSvc *service.ContactService, msgSvc *service.MessageService) *Handler {
	return &Handler{userSvc: userSvc, contactSvc: contactSvc, msgSvc: msgSvc}
}

// fail maps service errors to status codes; anything unknown is a 500.
func fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidRefreshToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("op", op).Str("user_id", auth.GetUserID(c)).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "detail": err.Error()})
}

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Name     string `json:"name" binding:"max=64"`
		Password string `json:"password" binding:"required,min=6,max=72"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.userSvc.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		fail(c, err, "register")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.userSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.userSvc.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err, "refresh")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.userSvc.Logout(c.Request.Context(), auth.GetToken(c)); err != nil {
		fail(c, err, "logout")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Me(c *gin.Context) {
	user, _ := c.Get("user")
	u, _ := user.(models.User)
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.contactSvc.List(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		fail(c, err, "list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req service.SendInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.msgSvc.Send(c.Request.Context(), auth.GetUserID(c), req)
	if err != nil {
		fail(c, err, "send message")
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) ListMessages(c *gin.Context) {
	other := c.Query("userId")
	if other == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	msgs, err := h.msgSvc.Conversation(c.Request.Context(), auth.GetUserID(c), other)
	if err != nil {
		fail(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.msgSvc.MarkRead(c.Request.Context(), auth.GetUserID(c), req.UserID)
	if err != nil {
		fail(c, err, "mark read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

func (h *Handler) React(c *gin.Context) {
	var req struct {
		MessageID string `json:"messageId" binding:"required"`
		Emoji     string `json:"emoji" binding:"required,max=32"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.msgSvc.React(c.Request.Context(), auth.GetUserID(c), req.MessageID, req.Emoji)
	if err != nil {
		fail(c, err, "react")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reactions": msg.Reactions})
}

func (h *Handler) LastMessages(c *gin.Context) {
	last, err := h.msgSvc.LastMessages(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		fail(c, err, "last messages")
		return
	}
	c.JSON(http.StatusOK, last)
}

func (h *Handler) ChatAction(c *gin.Context) {
	var req struct {
		Action       string `json:"action" binding:"required"`
		TargetUserID string `json:"targetUserId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	action, err := service.ParseChatAction(req.Action)
	if err != nil {
		fail(c, err, "chat action")
		return
	}
	msg, err := h.msgSvc.ApplyChatAction(c.Request.Context(), auth.GetUserID(c), action, req.TargetUserID)
	if err != nil {
		fail(c, err, "chat action")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

func (h *Handler) ExportChat(c *gin.Context) {
	target := c.Query("targetUserId")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "targetUserId is required"})
		return
	}
	lines, err := h.msgSvc.ExportChat(c.Request.Context(), auth.GetUserID(c), target)
	if err != nil {
		fail(c, err, "export chat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": lines, "count": len(lines)})
}
