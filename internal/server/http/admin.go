package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/arjunvm/puffmeter/internal/model"
)

// requireAdmin guards the admin override with a static bearer token.
// A missing server-side token is a configuration error, not an auth one.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminTok == "" {
			return c.JSON(http.StatusInternalServerError, errBody("server not configured: admin token missing"))
		}
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminTok)) != 1 {
			return c.JSON(http.StatusUnauthorized, errBody("unauthorized"))
		}
		return next(c)
	}
}

// handleAdminSet overwrites inventory counts directly, bypassing the
// purchase workflow. Unlike user errors, store errors surface verbatim
// here: the caller is staff.
func (s *Server) handleAdminSet(c echo.Context) error {
	counts, err := parseCounts(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err.Error()))
	}
	row, err := s.board.SetStats(c.Request().Context(), counts)
	if err != nil {
		if isValidation(err) {
			return c.JSON(http.StatusBadRequest, errBody(err.Error()))
		}
		return c.JSON(http.StatusInternalServerError, errBody(err.Error()))
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "stats": row})
}

// parseCounts accepts a subset of the tracked categories mapped to
// non-negative integers and rejects anything else.
func parseCounts(body io.Reader) (map[model.Category]int, error) {
	var raw map[string]json.Number
	dec := json.NewDecoder(body)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid request payload")
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("provide at least one of: chicken, motta, meat")
	}
	counts := make(map[model.Category]int, len(raw))
	for k, n := range raw {
		cat := model.Category(k)
		if !cat.Valid() {
			return nil, fmt.Errorf("unknown puff type %q", k)
		}
		v, err := n.Int64()
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", k)
		}
		counts[cat] = int(v)
	}
	return counts, nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
