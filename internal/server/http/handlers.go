package httpserver

import (
	"net/http"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/arjunvm/puffmeter/internal/errs"
	"github.com/arjunvm/puffmeter/internal/model"
)

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("invalid request payload"))
	}
	u, err := s.auth.Register(c.Request().Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		return s.jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	model.Tokens
	User model.User `json:"user"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("invalid request payload"))
	}
	tok, u, err := s.auth.LoginWithIP(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		return s.jsonError(c, err)
	}
	return c.JSON(http.StatusOK, loginResponse{Tokens: tok, User: u})
}

func (s *Server) handleStats(c echo.Context) error {
	row, err := s.board.Stats(c.Request().Context())
	if err != nil {
		return s.jsonError(c, err)
	}
	return c.JSON(http.StatusOK, row)
}

type purchaseRequest struct {
	PuffType string `json:"puff_type"`
	Quantity int    `json:"quantity"`
}

func (s *Server) handlePurchase(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return s.jsonError(c, errs.ErrUnauthorized)
	}
	var req purchaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errBody("invalid request payload"))
	}
	p, err := s.purchases.Purchase(c.Request().Context(), userID, model.Category(req.PuffType), req.Quantity)
	if err != nil {
		return s.jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	rows, err := s.board.Leaderboard(c.Request().Context())
	if err != nil {
		return s.jsonError(c, err)
	}
	if rows == nil {
		rows = []model.LeaderboardRow{}
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) handleAchievements(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return s.jsonError(c, errs.ErrUnauthorized)
	}
	out, err := s.board.Achievements(c.Request().Context(), userID)
	if err != nil {
		return s.jsonError(c, err)
	}
	if out == nil {
		out = []model.Achievement{}
	}
	return c.JSON(http.StatusOK, out)
}

// userIDFrom extracts the authenticated subject set by the JWT middleware.
func userIDFrom(c echo.Context) (uuid.UUID, error) {
	tok, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, errs.ErrUnauthorized
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return uuid.FromString(claims.Subject)
}
