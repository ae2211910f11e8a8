package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stellarlinkco/edusphere/internal/advisor"
)

// chatSessionPrefix namespaces HTTP conversations apart from the chat
// transports.
const chatSessionPrefix = "api:"

type adviceRequest struct {
	Query string `json:"query" validate:"required"`
}

type chatRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

func (s *server) registerAdvisorAPI(g *echo.Group) {
	g.POST("/advisor", s.advise)
	g.GET("/advisor/suggestions", suggestions)
}

func (s *server) registerChatAPI(g *echo.Group) {
	g.POST("/chat", s.chat)
	g.DELETE("/chat/:sessionId", s.endChat)
}

func (s *server) advise(ctx echo.Context) error {
	var req adviceRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s.opts.Advisor.Advise(ctx.Request().Context(), req.Query))
}

func suggestions(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, advisor.Suggestions())
}

func (s *server) chat(ctx echo.Context) error {
	var req chatRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}
	reply := s.opts.Chat.Send(ctx.Request().Context(), chatSessionPrefix+req.SessionID, req.Message)
	if reply.Discarded {
		// client left or the conversation was ended meanwhile
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(http.StatusOK, reply)
}

func (s *server) endChat(ctx echo.Context) error {
	s.opts.Chat.Drop(chatSessionPrefix + ctx.Param("sessionId"))
	return ctx.NoContent(http.StatusNoContent)
}
