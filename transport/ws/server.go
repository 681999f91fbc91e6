package ws

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"qna-live/auth"
	"qna-live/domain"
	"qna-live/errors"
	"qna-live/services"
	"qna-live/sink"
)

// Server mounts the realtime endpoint and the REST-style query surface
// on a fiber app. Both share the same bearer-token authentication.
type Server struct {
	log           *slog.Logger
	core          Core
	chat          services.IChatService
	notifications services.INotificationService
	votes         services.IVoteService
	authService   services.IAuthService

	connectionBufferSize int
	kickThreshold        int
}

func NewServer(log *slog.Logger, core Core, chat services.IChatService,
	notifications services.INotificationService, votes services.IVoteService,
	authService services.IAuthService,
	connectionBufferSize, kickThreshold int) *Server {
	return &Server{
		log:                  log,
		core:                 core,
		chat:                 chat,
		notifications:        notifications,
		votes:                votes,
		authService:          authService,
		connectionBufferSize: connectionBufferSize,
		kickThreshold:        kickThreshold,
	}
}

// Register wires every route. Login and register are the only public
// endpoints; everything else requires a valid bearer token, and a
// rejected token on any call forces the client back to login.
func (s *Server) Register(app *fiber.App) {
	app.Post("/api/register", s.registerHandler)
	app.Post("/api/login", s.loginHandler)

	api := app.Group("/api", s.requireAuth)
	api.Get("/notifications", s.listNotificationsHandler)
	api.Get("/notifications/unread-count", s.unreadCountHandler)
	api.Put("/notifications/:id/read", s.markReadHandler)
	api.Put("/notifications/mark-all-read", s.markAllReadHandler)
	api.Post("/notifications", s.pushNotificationHandler)

	api.Get("/chat/rooms", s.roomsHandler)
	api.Get("/chat/messages/:roomID", s.messagesHandler)
	api.Post("/chat/group", s.createGroupHandler)

	api.Put("/answers/:id/vote", s.voteHandler)
	api.Get("/answers/:id/votes", s.voteCountHandler)

	app.Use("/ws", s.requireAuth, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.realtimeHandler))
}

// requireAuth validates the bearer JWT from the Authorization header or
// the auth_token query parameter (websocket clients can't always set
// headers). Rejection is the 403-equivalent that must force a logout.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	token := auth.BearerToken(c.Get("Authorization"), c.Query("auth_token"))
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing credential"})
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired credential"})
	}
	c.Locals("user_id", claims.UserID)
	c.Locals("user_name", claims.Name)
	c.Locals("expires_at", claims.ExpiresAt.Time)
	return c.Next()
}

// realtimeHandler owns one Session for the lifetime of the connection.
// A session_id query resumes a previous session and replays its room
// joins; otherwise a fresh session is connected.
func (s *Server) realtimeHandler(c *websocket.Conn) {
	userID, _ := c.Locals("user_id").(string)
	userName, _ := c.Locals("user_name").(string)
	expiresAt, _ := c.Locals("expires_at").(time.Time)

	sessionSink := sink.NewSessionSink(s.log, s.connectionBufferSize, s.kickThreshold)

	sessionID := c.Query("session_id")
	var rejoined []domain.RoomID
	if sessionID != "" {
		rooms, err := s.core.Resume(sessionID, userID, sessionSink)
		if err != nil {
			// Unknown or foreign session: fall back to a fresh one.
			sessionID = ""
		} else {
			rejoined = rooms
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
		s.core.Connect(sessionID, userID, sessionSink)
	}

	session := NewSession(sessionID, userID, userName, expiresAt,
		c, sessionSink, s.core, s.chat, s.log)

	rooms := make([]string, len(rejoined))
	for i, roomID := range rejoined {
		rooms[i] = string(roomID)
	}
	session.send(EventSessionEstablished, SessionEstablishedPayload{
		SessionID:     sessionID,
		RejoinedRooms: rooms,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.WritePump(ctx)
	session.ReadPump(ctx)
}

type credentialsBody struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) registerHandler(c *fiber.Ctx) error {
	var body credentialsBody
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	token, err := s.authService.Register(body.Email, body.Name, body.Password)
	switch {
	case err == nil:
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token})
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email already registered"})
	case stderrors.Is(err, errors.ErrInvalidPassword):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.SendStatus(fiber.StatusInternalServerError)
	}
}

func (s *Server) loginHandler(c *fiber.Ctx) error {
	var body credentialsBody
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	token, err := s.authService.Login(body.Email, body.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}
	return c.JSON(fiber.Map{"token": token})
}

func (s *Server) listNotificationsHandler(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	notifications, err := s.notifications.List(userID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(notifications)
}

func (s *Server) unreadCountHandler(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	count, err := s.notifications.UnreadCount(userID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(fiber.Map{"count": count})
}

func (s *Server) markReadHandler(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	err = s.notifications.MarkRead(userID, id)
	if stderrors.Is(err, errors.ErrNotificationNotFound) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) markAllReadHandler(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if err := s.notifications.MarkAllRead(userID); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type pushNotificationBody struct {
	RecipientID string `json:"recipientId"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Link        string `json:"link"`
}

// pushNotificationHandler is the hook the domain-event producers
// (answer created, mention) call into.
func (s *Server) pushNotificationHandler(c *fiber.Ctx) error {
	var body pushNotificationBody
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	n, err := s.notifications.Push(c.Context(), body.RecipientID, body.Type, body.Content, body.Link)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": n.ID})
}

func (s *Server) roomsHandler(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	rooms, err := s.chat.RoomsForUser(userID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(rooms)
}

func (s *Server) messagesHandler(c *fiber.Ctx) error {
	var cursor *string
	if q := c.Query("cursor"); q != "" {
		cursor = &q
	}
	messages, next, err := s.chat.GetMessages(domain.GetMessagesCommand{
		Room:   domain.RoomID(c.Params("roomID")),
		Cursor: cursor,
	})
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(fiber.Map{"messages": messages, "cursor": next})
}

type createGroupBody struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (s *Server) createGroupHandler(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var body createGroupBody
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	// The creator is always a member of the group they create.
	members := body.Members
	if !lo.Contains(members, userID) {
		members = append(members, userID)
	}
	room, err := s.chat.CreateGroup(body.Name, members)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

type voteBody struct {
	Type string `json:"type"`
}

func (s *Server) voteHandler(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var body voteBody
	if err := c.BodyParser(&body); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	voteType := domain.VoteType(body.Type)
	if voteType != domain.VoteUp && voteType != domain.VoteDown {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	err := s.votes.Cast(c.Params("id"), userID, voteType)
	if stderrors.Is(err, errors.ErrDuplicateVote) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already voted"})
	}
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) voteCountHandler(c *fiber.Ctx) error {
	up, down, err := s.votes.Count(c.Params("id"))
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.JSON(fiber.Map{"up": up, "down": down})
}
