// Package httpserver exposes the puff-meter HTTP API.
package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/arjunvm/puffmeter/internal/errs"
	"github.com/arjunvm/puffmeter/internal/feed"
	"github.com/arjunvm/puffmeter/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth      service.AuthService
	purchases service.PurchaseService
	board     service.BoardService
	hub       *feed.Hub
	signKey   []byte
	adminTok  string
	log       *zap.Logger
}

// New constructs a server with injected services. adminTok may be empty;
// the admin endpoint then reports a configuration error on every call.
func New(
	auth service.AuthService,
	purchases service.PurchaseService,
	board service.BoardService,
	hub *feed.Hub,
	signKey []byte,
	adminTok string,
	log *zap.Logger,
) *Server {
	return &Server{
		auth:      auth,
		purchases: purchases,
		board:     board,
		hub:       hub,
		signKey:   signKey,
		adminTok:  adminTok,
		log:       log,
	}
}

// Echo builds the router with middleware and all routes registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(s.log))

	e.GET("/health", s.handleHealth)
	e.POST("/api/register", s.handleRegister)
	e.POST("/api/login", s.handleLogin)
	e.GET("/api/stats", s.handleStats)
	e.GET("/api/stats/stream", s.handleStatsStream)
	e.GET("/api/leaderboard", s.handleLeaderboard)
	e.POST("/api/stats/set", s.handleAdminSet, s.requireAdmin)

	authed := e.Group("/api", echojwt.WithConfig(echojwt.Config{
		SigningKey: s.signKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(jwt.RegisteredClaims)
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return c.JSON(http.StatusUnauthorized, errBody("missing or invalid token"))
		},
	}))
	authed.POST("/purchase", s.handlePurchase)
	authed.GET("/achievements", s.handleAchievements)

	return e
}

// requestLogger logs request metadata, never payloads.
func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			log.Info("http",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", c.RealIP()),
			)
			return nil
		}
	}
}

// jsonError maps service/repo errors onto HTTP statuses. Store errors stay
// generic toward the client; the details go to the log.
func (s *Server) jsonError(c echo.Context, err error) error {
	switch {
	case isValidation(err), errors.Is(err, errs.ErrInvalidCategory):
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	case errors.Is(err, errs.ErrInsufficientStock):
		return c.JSON(http.StatusConflict, errBody(err.Error()))
	case errors.Is(err, errs.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, errBody("already registered"))
	case errors.Is(err, errs.ErrNotFound):
		return c.JSON(http.StatusNotFound, errBody("not found"))
	case errors.Is(err, errs.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, errBody("invalid credentials"))
	case errors.Is(err, errs.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, errBody("too many attempts, try again later"))
	default:
		s.log.Error("internal error", zap.Error(err), zap.String("path", c.Request().URL.Path))
		return c.JSON(http.StatusInternalServerError, errBody("internal error"))
	}
}

// Validation errors are produced locally with a stable prefix and surfaced
// verbatim.
func isValidation(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "validation: ")
}

func errBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
