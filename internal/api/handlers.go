package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"medassist/internal/auth"
	"medassist/internal/models"
	"medassist/internal/storage"
	"medassist/internal/worker"
)

const chatTimeout = 2 * time.Minute

const genericErrorMessage = "Something went wrong. Please try again."

// chatService is the conversation surface the handlers need.
type chatService interface {
	Respond(ctx context.Context, userID int64, sessionID, turnID, message, language string) (string, error)
	InitialMessage(ctx context.Context, userID int64, language string) (string, error)
	Summary(ctx context.Context, userID int64) string
}

// Handler wires the HTTP routes to the services.
type Handler struct {
	authSvc    *auth.Service
	chat       chatService
	turns      *storage.TurnStore
	dispatcher *worker.Dispatcher
	defaultLan string
}

func NewHandler(authSvc *auth.Service, chat chatService, turns *storage.TurnStore, dispatcher *worker.Dispatcher, defaultLanguage string) *Handler {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Handler{
		authSvc:    authSvc,
		chat:       chat,
		turns:      turns,
		dispatcher: dispatcher,
		defaultLan: defaultLanguage,
	}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/api/login", h.Login)

	authed := r.Group("/api", auth.Middleware(h.authSvc))
	authed.POST("/logout", h.Logout)
	authed.POST("/chat", h.Chat)

	users := authed.Group("/users/:id", auth.RequirePathUser())
	users.GET("/history", h.History)
	users.GET("/summary", h.Summary)
	users.GET("/initial-message", h.InitialMessage)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	Name string `json:"name" binding:"required"`
	DOB  string `json:"dob" binding:"required"`
	Pin  string `json:"pin" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, dob and pin are required"})
		return
	}

	user, err := h.authSvc.Authenticate(c.Request.Context(), req.Name, req.DOB, req.Pin)
	switch {
	case errors.Is(err, auth.ErrAccountLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": "account locked after too many failed attempts"})
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case err != nil:
		log.Printf("login: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericErrorMessage})
		return
	}

	token, err := h.authSvc.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("issue token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericErrorMessage})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *Handler) Logout(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if err := h.authSvc.RevokeToken(c.Request.Context(), token); err != nil {
		log.Printf("logout: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericErrorMessage})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	Language  string `json:"language"`
}

func (h *Handler) Chat(c *gin.Context) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	language := req.Language
	if language == "" {
		language = h.defaultLan
	}

	// The job runs on its own context: a client-side abort must not
	// cancel the pipeline mid-write, only the timeout bounds it.
	ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
	defer cancel()

	type chatResult struct {
		reply string
		err   error
	}
	resCh := make(chan chatResult, 1)

	err := h.dispatcher.Submit(userID, func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("chat pipeline panic for user %d: %v", userID, rec)
				resCh <- chatResult{err: errors.New("pipeline panic")}
			}
		}()
		reply, err := h.chat.Respond(ctx, userID, req.SessionID, req.RequestID, req.Message, language)
		resCh <- chatResult{reply: reply, err: err}
	})
	if errors.Is(err, worker.ErrDispatcherBusy) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many pending requests, try again shortly"})
		return
	}
	if err != nil {
		log.Printf("submit chat job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericErrorMessage})
		return
	}

	select {
	case res := <-resCh:
		if res.err != nil {
			log.Printf("chat for user %d: %v", userID, res.err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": genericErrorMessage})
			return
		}
		c.JSON(http.StatusOK, gin.H{"response": res.reply, "session_id": req.SessionID})
	case <-ctx.Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": genericErrorMessage})
	}
}

func (h *Handler) History(c *gin.Context) {
	userID, _ := auth.UserIDFromContext(c)

	turns, err := h.turns.History(c.Request.Context(), userID, 50)
	if err != nil {
		log.Printf("load history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericErrorMessage})
		return
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	c.JSON(http.StatusOK, gin.H{"history": turns})
}

func (h *Handler) Summary(c *gin.Context) {
	userID, _ := auth.UserIDFromContext(c)
	c.JSON(http.StatusOK, gin.H{"summary": h.chat.Summary(c.Request.Context(), userID)})
}

func (h *Handler) InitialMessage(c *gin.Context) {
	userID, _ := auth.UserIDFromContext(c)
	language := c.Query("lang")
	if language == "" {
		language = h.defaultLan
	}

	msg, err := h.chat.InitialMessage(c.Request.Context(), userID, language)
	if err != nil {
		log.Printf("initial message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericErrorMessage})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
