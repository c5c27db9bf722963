package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arjunvm/puffmeter/internal/errs"
	"github.com/arjunvm/puffmeter/internal/feed"
	"github.com/arjunvm/puffmeter/internal/model"
)

var testSignKey = []byte("test-sign-key")

type fakeAuth struct {
	registerUser *model.User
	registerErr  error

	loginTokens model.Tokens
	loginUser   model.User
	loginErr    error
}

func (f *fakeAuth) Register(_ context.Context, fullName, email, password string) (*model.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registerUser, nil
}

func (f *fakeAuth) LoginWithIP(_ context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	return f.loginTokens, f.loginUser, f.loginErr
}

type fakePurchaseSvc struct {
	p   *model.Purchase
	err error

	gotUserID   uuid.UUID
	gotCategory model.Category
	gotQuantity int
}

func (f *fakePurchaseSvc) Purchase(_ context.Context, userID uuid.UUID, category model.Category, quantity int) (*model.Purchase, error) {
	f.gotUserID, f.gotCategory, f.gotQuantity = userID, category, quantity
	if f.err != nil {
		return nil, f.err
	}
	return f.p, nil
}

type fakeBoard struct {
	stats    model.Stats
	statsErr error

	setRow   model.Stats
	setErr   error
	setCalls int
	lastSet  map[model.Category]int

	rows     []model.LeaderboardRow
	rowsErr  error
	achs     []model.Achievement
	achsErr  error
}

func (f *fakeBoard) Stats(context.Context) (model.Stats, error) { return f.stats, f.statsErr }

func (f *fakeBoard) SetStats(_ context.Context, counts map[model.Category]int) (model.Stats, error) {
	f.setCalls++
	f.lastSet = counts
	return f.setRow, f.setErr
}

func (f *fakeBoard) Leaderboard(context.Context) ([]model.LeaderboardRow, error) {
	return f.rows, f.rowsErr
}

func (f *fakeBoard) Achievements(context.Context, uuid.UUID) ([]model.Achievement, error) {
	return f.achs, f.achsErr
}

func newTestServer(t *testing.T, auth *fakeAuth, purchases *fakePurchaseSvc, board *fakeBoard, adminTok string) *Server {
	t.Helper()
	if auth == nil {
		auth = &fakeAuth{}
	}
	if purchases == nil {
		purchases = &fakePurchaseSvc{}
	}
	if board == nil {
		board = &fakeBoard{}
	}
	return New(auth, purchases, board, feed.NewHub(), testSignKey, adminTok, zap.NewNop())
}

func signToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSignKey)
	require.NoError(t, err)
	return signed
}

func doJSON(e http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()
	e := newTestServer(t, nil, nil, nil, "tok").Echo()

	rec := doJSON(e, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestAdminSet_TokenMatrix(t *testing.T) {
	t.Parallel()

	board := &fakeBoard{setRow: model.Stats{Chicken: 5, Motta: 7, Meat: 9}}

	// Misconfigured server: 500 before any token check.
	e := newTestServer(t, nil, nil, board, "").Echo()
	rec := doJSON(e, http.MethodPost, "/api/stats/set", "whatever", `{"chicken":5}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Zero(t, board.setCalls)

	e = newTestServer(t, nil, nil, board, "admin123").Echo()

	// Missing token.
	rec = doJSON(e, http.MethodPost, "/api/stats/set", "", `{"chicken":5}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong token.
	rec = doJSON(e, http.MethodPost, "/api/stats/set", "nope", `{"chicken":5}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, board.setCalls, "counts must stay untouched on auth failure")

	// Valid token.
	rec = doJSON(e, http.MethodPost, "/api/stats/set", "admin123", `{"chicken":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, board.setCalls)
	require.Equal(t, map[model.Category]int{model.CategoryChicken: 5}, board.lastSet)

	var resp struct {
		OK    bool        `json:"ok"`
		Stats model.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.OK)
	require.Equal(t, 5, resp.Stats.Chicken)
	require.Equal(t, 7, resp.Stats.Motta)
}

func TestAdminSet_ValidationMatrix(t *testing.T) {
	t.Parallel()

	board := &fakeBoard{}
	e := newTestServer(t, nil, nil, board, "admin123").Echo()

	for name, body := range map[string]string{
		"empty object":   `{}`,
		"unknown key":    `{"paneer":5}`,
		"negative":       `{"chicken":-1}`,
		"non-integer":    `{"chicken":2.5}`,
		"malformed json": `{"chicken":`,
	} {
		rec := doJSON(e, http.MethodPost, "/api/stats/set", "admin123", body)
		require.Equalf(t, http.StatusBadRequest, rec.Code, "case %q", name)
	}
	require.Zero(t, board.setCalls)
}

func TestPurchase_RequiresAuth(t *testing.T) {
	t.Parallel()

	purchases := &fakePurchaseSvc{}
	e := newTestServer(t, nil, purchases, nil, "tok").Echo()

	rec := doJSON(e, http.MethodPost, "/api/purchase", "", `{"puff_type":"chicken","quantity":1}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, uuid.Nil, purchases.gotUserID)
}

func TestPurchase_OK(t *testing.T) {
	t.Parallel()

	uid := uuid.Must(uuid.NewV4())
	purchases := &fakePurchaseSvc{p: &model.Purchase{ID: 1, UserID: uid, Category: model.CategoryChicken, Quantity: 2}}
	e := newTestServer(t, nil, purchases, nil, "tok").Echo()

	rec := doJSON(e, http.MethodPost, "/api/purchase", signToken(t, uid), `{"puff_type":"chicken","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, uid, purchases.gotUserID)
	require.Equal(t, model.CategoryChicken, purchases.gotCategory)
	require.Equal(t, 2, purchases.gotQuantity)
}

func TestPurchase_ErrorMapping(t *testing.T) {
	t.Parallel()

	uid := uuid.Must(uuid.NewV4())
	for _, tc := range []struct {
		err  error
		code int
	}{
		{fmt.Errorf("not enough chicken puffs in stock (available 1, requested 2): %w", errs.ErrInsufficientStock), http.StatusConflict},
		{fmt.Errorf("unknown puff type %q: %w", "paneer", errs.ErrInvalidCategory), http.StatusBadRequest},
		{fmt.Errorf("validation: quantity must be a positive integer, got 0"), http.StatusBadRequest},
		{errs.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("pg: connection refused"), http.StatusInternalServerError},
	} {
		purchases := &fakePurchaseSvc{err: tc.err}
		e := newTestServer(t, nil, purchases, nil, "tok").Echo()
		rec := doJSON(e, http.MethodPost, "/api/purchase", signToken(t, uid), `{"puff_type":"chicken","quantity":2}`)
		require.Equalf(t, tc.code, rec.Code, "err %v", tc.err)
	}
}

func TestPurchase_InsufficientStockMessageSurfaces(t *testing.T) {
	t.Parallel()

	uid := uuid.Must(uuid.NewV4())
	purchases := &fakePurchaseSvc{
		err: fmt.Errorf("not enough motta puffs in stock (available 2, requested 5): %w", errs.ErrInsufficientStock),
	}
	e := newTestServer(t, nil, purchases, nil, "tok").Echo()

	rec := doJSON(e, http.MethodPost, "/api/purchase", signToken(t, uid), `{"puff_type":"motta","quantity":5}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "available 2")
}

func TestLogin_And_RegisterMapping(t *testing.T) {
	t.Parallel()

	uid := uuid.Must(uuid.NewV4())

	auth := &fakeAuth{
		loginTokens: model.Tokens{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Minute)},
		loginUser:   model.User{ID: uid, FullName: "Alice", Email: "alice@campus.test"},
	}
	e := newTestServer(t, auth, nil, nil, "tok").Echo()

	rec := doJSON(e, http.MethodPost, "/api/login", "", `{"email":"alice@campus.test","password":"p"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"token":"tok"`)

	auth.loginErr = errs.ErrUnauthorized
	rec = doJSON(e, http.MethodPost, "/api/login", "", `{"email":"alice@campus.test","password":"bad"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	auth.loginErr = errs.ErrRateLimited
	rec = doJSON(e, http.MethodPost, "/api/login", "", `{"email":"alice@campus.test","password":"bad"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	auth.registerErr = errs.ErrAlreadyExists
	rec = doJSON(e, http.MethodPost, "/api/register", "", `{"full_name":"A","email":"a@b.c","password":"p"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	auth.registerErr = nil
	auth.registerUser = &model.User{ID: uid, FullName: "A", Email: "a@b.c"}
	rec = doJSON(e, http.MethodPost, "/api/register", "", `{"full_name":"A","email":"a@b.c","password":"p"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestStatsStream_DeliversAndStopsOnDisconnect(t *testing.T) {
	t.Parallel()

	hub := feed.NewHub()
	s := New(&fakeAuth{}, &fakePurchaseSvc{}, &fakeBoard{}, hub, testSignKey, "tok", zap.NewNop())
	srv := httptest.NewServer(s.Echo())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stats/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Broadcast until the subscriber is registered and a line arrives.
	lines := make(chan string, 1)
	go func() {
		buf := make([]byte, 4096)
		n, _ := resp.Body.Read(buf)
		lines <- string(buf[:n])
	}()
	deadline := time.After(2 * time.Second)
	for {
		hub.Broadcast(model.Stats{Chicken: 42})
		select {
		case got := <-lines:
			require.Contains(t, got, `"chicken":42`)
			return
		case <-deadline:
			t.Fatalf("no SSE event received")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
