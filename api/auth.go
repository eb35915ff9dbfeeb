package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	jwtmw "github.com/tech-arch1tect/condoaccess/middleware/jwt"
	"github.com/tech-arch1tect/condoaccess/services/refreshsession"
)

type OutcomeResponse struct {
	Outcome refreshsession.RevokeOutcome `json:"outcome"`
}

type RevokeAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type SessionsResponse struct {
	Sessions []refreshsession.SessionView `json:"sessions"`
	Count    int                          `json:"count"`
}

func (h *Handler) Login(c echo.Context) error {
	req, err := bindLogin(c)
	if err != nil {
		return err
	}

	tokens, err := h.sessions.Login(c.Request().Context(), req.Email, req.Password, clientInfo(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokens)
}

func (h *Handler) Refresh(c echo.Context) error {
	req, err := bindRefresh(c)
	if err != nil {
		return err
	}

	tokens, err := h.sessions.RotateSession(c.Request().Context(), req.RefreshToken, clientInfo(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokens)
}

func (h *Handler) Logout(c echo.Context) error {
	req, err := bindRefresh(c)
	if err != nil {
		return err
	}

	outcome, err := h.sessions.Logout(c.Request().Context(), req.RefreshToken, clientInfo(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OutcomeResponse{Outcome: outcome})
}

func (h *Handler) LogoutAll(c echo.Context) error {
	count, err := h.sessions.RevokeAllSessions(c.Request().Context(), jwtmw.GetUserID(c), clientInfo(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RevokeAllResponse{Revoked: count})
}

func (h *Handler) ListSessions(c echo.Context) error {
	views, err := h.sessions.ListActiveSessions(c.Request().Context(), jwtmw.GetUserID(c), jwtmw.GetSessionID(c), clientInfo(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SessionsResponse{Sessions: views, Count: len(views)})
}

func (h *Handler) RevokeSession(c echo.Context) error {
	outcome, err := h.sessions.RevokeSession(c.Request().Context(), c.Param("id"), jwtmw.GetUserID(c), clientInfo(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OutcomeResponse{Outcome: outcome})
}
