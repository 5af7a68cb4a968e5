package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledger/internal/auth"
	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/store/memory"
)

const testSecret = "http-test-secret-0123456789"

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type ServerSuite struct {
	suite.Suite
	store  *memory.Store
	auth   *services.AuthService
	server *Server

	adminToken string
	aliceToken string
	aliceID    string
	bobToken   string
	bobID      string
	foodID     string
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.store = memory.New()
	s.auth = services.NewAuthService(s.store, auth.NewTokens(testSecret, time.Hour), auth.NewPasswords(4))
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	s.server = NewServer(":0", Deps{
		Auth:       s.auth,
		Categories: services.NewCategoryService(s.store, nil),
		Ledger:     services.NewLedgerService(s.store, nil),
		Stats:      services.NewStatsService(s.store).WithClock(func() time.Time { return now }),
		Ready:      s.store,
	}, Options{AuthRateLimit: 1000, StoreTimeout: time.Second})
	s.T().Cleanup(func() { _ = s.server.Shutdown(context.Background()) })

	s.adminToken, _ = s.signup("admin@example.com", true)
	s.aliceToken, s.aliceID = s.signup("alice@example.com", false)
	s.bobToken, s.bobID = s.signup("bob@example.com", false)

	rr := s.do(http.MethodPost, "/categories", s.adminToken, `{"name":"Food"}`)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	s.foodID = s.decodeObject(rr)["id"].(string)
}

func (s *ServerSuite) signup(email string, admin bool) (token, id string) {
	rr := s.do(http.MethodPost, "/auth/register", "", `{"name":"`+strings.Split(email, "@")[0]+`","email":"`+email+`","password":"secret"}`)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	if admin {
		_, err := s.auth.SetRole(context.Background(), email, core.RoleAdmin)
		s.Require().NoError(err)
	}

	rr = s.do(http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"secret"}`)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	body := s.decodeObject(rr)
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

func (s *ServerSuite) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:4321"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, req)
	return rr
}

func (s *ServerSuite) decodeObject(rr *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (s *ServerSuite) decodeList(rr *httptest.ResponseRecorder) []map[string]any {
	var out []map[string]any
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (s *ServerSuite) createExpense(token, body string) map[string]any {
	rr := s.do(http.MethodPost, "/expenses", token, body)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return s.decodeObject(rr)
}

func (s *ServerSuite) assertError(rr *httptest.ResponseRecorder, status int, kind, message string) {
	s.Equal(status, rr.Code, rr.Body.String())
	body := s.decodeObject(rr)
	s.Equal(kind, body["error"])
	if message != "" {
		s.Equal(message, body["message"])
	}
}

func (s *ServerSuite) TestBannerAndHealthChecks() {
	rr := s.do(http.MethodGet, "/", "", "")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("Expense Tracker API is up", rr.Body.String())
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
	s.Equal("nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = s.do(http.MethodGet, "/healthz", "", "")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("ok", s.decodeObject(rr)["status"])

	rr = s.do(http.MethodGet, "/readyz", "", "")
	s.Equal(http.StatusOK, rr.Code)
}

func (s *ServerSuite) TestReadyzReportsStoreFailure() {
	s.server.ready = pingerFunc(func(context.Context) error { return errors.New("down") })
	rr := s.do(http.MethodGet, "/readyz", "", "")
	s.Equal(http.StatusServiceUnavailable, rr.Code)
}

func (s *ServerSuite) TestRegisterValidation() {
	s.assertError(s.do(http.MethodPost, "/auth/register", "", `{"email":"alice@example.com","password":"x"}`),
		http.StatusBadRequest, "validation", "Email already registered")
	s.assertError(s.do(http.MethodPost, "/auth/register", "", `{"email":"","password":"x"}`),
		http.StatusBadRequest, "validation", "Email and password required")
	s.assertError(s.do(http.MethodPost, "/auth/register", "", `{"email":"c@example.com","password":"x","role":"admin"}`),
		http.StatusBadRequest, "validation", `unknown field "role"`)
	s.assertError(s.do(http.MethodPost, "/auth/register", "", ``),
		http.StatusBadRequest, "validation", "request body required")
}

func (s *ServerSuite) TestLogin() {
	rr := s.do(http.MethodPost, "/auth/login", "", `{"email":"ALICE@example.com","password":"secret"}`)
	s.Require().Equal(http.StatusOK, rr.Code)
	user := s.decodeObject(rr)["user"].(map[string]any)
	s.Equal("alice", user["name"])
	s.Equal("user", user["role"])
	s.NotContains(user, "status")

	s.assertError(s.do(http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"wrong"}`),
		http.StatusBadRequest, "validation", "Invalid credentials")
}

func (s *ServerSuite) TestBlockedUser() {
	_, err := s.auth.SetStatus(context.Background(), "bob@example.com", core.StatusBlocked)
	s.Require().NoError(err)

	s.assertError(s.do(http.MethodGet, "/expenses", s.bobToken, ""), http.StatusForbidden, "forbidden", "account is blocked")
	s.assertError(s.do(http.MethodPost, "/auth/login", "", `{"email":"bob@example.com","password":"secret"}`),
		http.StatusForbidden, "forbidden", "account is blocked")
}

func (s *ServerSuite) TestAuthentication() {
	s.assertError(s.do(http.MethodGet, "/expenses", "", ""), http.StatusUnauthorized, "unauthenticated", "No token provided")
	s.assertError(s.do(http.MethodGet, "/expenses", "garbage", ""), http.StatusUnauthorized, "unauthenticated", "Token invalid or expired")

	other, err := auth.NewTokens("another-secret-0123456789", time.Hour).Issue(core.User{ID: s.aliceID, Role: core.RoleUser})
	s.Require().NoError(err)
	s.assertError(s.do(http.MethodGet, "/expenses", other, ""), http.StatusUnauthorized, "unauthenticated", "")

	rr := s.do(http.MethodGet, "/auth/me", s.aliceToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	me := s.decodeObject(rr)
	s.Equal(s.aliceID, me["id"])
	s.Equal("active", me["status"])
}

func (s *ServerSuite) TestCategories() {
	s.assertError(s.do(http.MethodPost, "/categories", s.aliceToken, `{"name":"Travel"}`),
		http.StatusForbidden, "forbidden", "")
	s.assertError(s.do(http.MethodPost, "/categories", s.adminToken, `{"name":" Food "}`),
		http.StatusBadRequest, "conflict", "Category already exists")
	s.assertError(s.do(http.MethodPost, "/categories", s.adminToken, `{"name":"  "}`),
		http.StatusBadRequest, "validation", "")

	rr := s.do(http.MethodGet, "/categories", s.aliceToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	list := s.decodeList(rr)
	s.Require().Len(list, 1)
	s.Equal("Food", list[0]["name"])

	s.assertError(s.do(http.MethodDelete, "/categories/not-an-id", s.adminToken, ""),
		http.StatusBadRequest, "validation", "invalid category id")
	s.assertError(s.do(http.MethodDelete, "/categories/"+core.NewID(), s.adminToken, ""),
		http.StatusNotFound, "not_found", "Category not found")
	s.assertError(s.do(http.MethodDelete, "/categories/"+s.foodID, s.aliceToken, ""),
		http.StatusForbidden, "forbidden", "")

	rr = s.do(http.MethodDelete, "/categories/"+s.foodID, s.adminToken, "")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("Category deleted", s.decodeObject(rr)["message"])

	rr = s.do(http.MethodPost, "/categories", s.adminToken, `{"name":"Food"}`)
	s.Equal(http.StatusCreated, rr.Code)
}

func (s *ServerSuite) TestCreateExpense() {
	e := s.createExpense(s.aliceToken, `{"category":"`+s.foodID+`","amount":"12.50","date":"2025-06-01","description":"lunch"}`)
	s.EqualValues(12.5, e["amount"])
	s.Equal("lunch", e["description"])
}

func (s *ServerSuite) TestExpenseLifecycle() {
	e := s.createExpense(s.aliceToken, `{"category":"`+s.foodID+`","amount":12.5,"date":"2025-06-01","description":"lunch"}`)
	id := e["id"].(string)
	s.Equal(s.aliceID, e["ownerId"])
	s.Equal("2025-06-01T00:00:00Z", e["date"])
	s.Equal("Food", e["category"].(map[string]any)["name"])
	s.Equal("alice@example.com", e["user"].(map[string]any)["email"])

	rr := s.do(http.MethodPut, "/expenses/"+id, s.aliceToken, `{"amount":0}`)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	updated := s.decodeObject(rr)
	s.EqualValues(0, updated["amount"])
	s.Equal("lunch", updated["description"])

	s.assertError(s.do(http.MethodPut, "/expenses/"+id, s.bobToken, `{"amount":1}`), http.StatusForbidden, "forbidden", "")
	s.assertError(s.do(http.MethodDelete, "/expenses/"+id, s.bobToken, ""), http.StatusForbidden, "forbidden", "")
	s.assertError(s.do(http.MethodPut, "/expenses/bad-id", s.aliceToken, `{"amount":1}`), http.StatusBadRequest, "validation", "Invalid id")
	s.assertError(s.do(http.MethodDelete, "/expenses/"+core.NewID(), s.aliceToken, ""), http.StatusNotFound, "not_found", "Expense not found")

	rr = s.do(http.MethodPut, "/expenses/"+id, s.adminToken, `{"description":"team lunch"}`)
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal(s.aliceID, s.decodeObject(rr)["ownerId"])

	rr = s.do(http.MethodDelete, "/expenses/"+id, s.aliceToken, "")
	s.Equal(http.StatusOK, rr.Code)
	s.Equal("Deleted", s.decodeObject(rr)["message"])
}

func (s *ServerSuite) TestCreateExpenseValidation() {
	s.assertError(s.do(http.MethodPost, "/expenses", s.aliceToken, `{"amount":5}`),
		http.StatusBadRequest, "validation", "")
	s.assertError(s.do(http.MethodPost, "/expenses", s.aliceToken, `{"category":"`+core.NewID()+`","amount":5}`),
		http.StatusBadRequest, "validation", "invalid category")
	s.assertError(s.do(http.MethodPost, "/expenses", s.aliceToken, `{"category":"`+s.foodID+`","amount":5,"date":"yesterday"}`),
		http.StatusBadRequest, "validation", "invalid date")
	s.assertError(s.do(http.MethodPost, "/expenses", s.aliceToken, `{"category":"`+s.foodID+`","amount":5,"owner":"x"}`),
		http.StatusBadRequest, "validation", "")
	s.assertError(s.do(http.MethodPost, "/expenses", s.aliceToken, `{"category":"`+s.foodID+`","amount":1e-3000000}`),
		http.StatusBadRequest, "validation", "invalid amount")
	s.assertError(s.do(http.MethodPost, "/expenses", s.aliceToken, `{"category":"`+s.foodID+`","amount":"1e13"}`),
		http.StatusBadRequest, "validation", "invalid amount")
	s.assertError(s.do(http.MethodPost, "/expenses", s.aliceToken, `{"category":"","amount":5}`),
		http.StatusBadRequest, "validation", "invalid category")

	rr := s.do(http.MethodGet, "/expenses", s.aliceToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("[]", strings.TrimSpace(rr.Body.String()))
}

func (s *ServerSuite) TestUpdateExpenseRejectsBlankCategory() {
	e := s.createExpense(s.aliceToken, `{"category":"`+s.foodID+`","amount":3}`)
	id := e["id"].(string)

	s.assertError(s.do(http.MethodPut, "/expenses/"+id, s.aliceToken, `{"category":""}`),
		http.StatusBadRequest, "validation", "invalid category")
	s.assertError(s.do(http.MethodPut, "/expenses/"+id, s.aliceToken, `{"amount":"0.000001"}`),
		http.StatusBadRequest, "validation", "invalid amount")

	rr := s.do(http.MethodPut, "/expenses/"+id, s.aliceToken, `{"description":"kept"}`)
	s.Require().Equal(http.StatusOK, rr.Code)
	updated := s.decodeObject(rr)
	s.Equal(s.foodID, updated["categoryId"])
	s.EqualValues(3, updated["amount"])
}

func (s *ServerSuite) TestRegisterRejectsLongPassword() {
	s.assertError(s.do(http.MethodPost, "/auth/register", "",
		`{"email":"long@example.com","password":"`+strings.Repeat("p", 73)+`"}`),
		http.StatusBadRequest, "validation", "password too long")
}

func (s *ServerSuite) TestListScopes() {
	s.createExpense(s.aliceToken, `{"category":"`+s.foodID+`","amount":10,"date":"2025-06-01"}`)
	s.createExpense(s.bobToken, `{"category":"`+s.foodID+`","amount":20,"date":"2025-06-02"}`)

	rr := s.do(http.MethodGet, "/expenses?userId="+s.bobID, s.aliceToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	list := s.decodeList(rr)
	s.Require().Len(list, 1)
	s.Equal(s.aliceID, list[0]["ownerId"])

	rr = s.do(http.MethodGet, "/expenses", s.adminToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	list = s.decodeList(rr)
	s.Require().Len(list, 2)
	s.Equal(s.bobID, list[0]["ownerId"], "newest first")

	rr = s.do(http.MethodGet, "/expenses?userId="+s.bobID, s.adminToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Len(s.decodeList(rr), 1)

	s.assertError(s.do(http.MethodGet, "/expenses?userId=nope", s.adminToken, ""), http.StatusBadRequest, "validation", "")
}

func (s *ServerSuite) TestEmptyListIsArray() {
	rr := s.do(http.MethodGet, "/expenses", s.aliceToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("[]", strings.TrimSpace(rr.Body.String()))
}

func (s *ServerSuite) TestDeletedCategoryProjectsNull() {
	e := s.createExpense(s.aliceToken, `{"category":"`+s.foodID+`","amount":10}`)
	s.Require().Equal(http.StatusOK, s.do(http.MethodDelete, "/categories/"+s.foodID, s.adminToken, "").Code)

	rr := s.do(http.MethodGet, "/expenses", s.aliceToken, "")
	list := s.decodeList(rr)
	s.Require().Len(list, 1)
	s.Equal(e["id"], list[0]["id"])
	s.Nil(list[0]["category"])
	s.Equal(s.foodID, list[0]["categoryId"])
}

func (s *ServerSuite) TestStats() {
	for _, body := range []string{
		`{"category":"` + s.foodID + `","amount":30,"date":"2025-06-01"}`,
		`{"category":"` + s.foodID + `","amount":50,"date":"2025-06-02"}`,
		`{"category":"` + s.foodID + `","amount":10,"date":"2025-06-03"}`,
		`{"category":"` + s.foodID + `","amount":100,"date":"2025-05-10"}`,
	} {
		s.createExpense(s.aliceToken, body)
	}

	rr := s.do(http.MethodGet, "/stats/top-days", s.aliceToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	days := s.decodeList(rr)
	s.Require().Len(days, 3)
	s.Equal("2025-05-10", days[0]["day"])
	s.EqualValues(100, days[0]["total"])
	s.Equal("2025-06-02", days[1]["day"])

	rr = s.do(http.MethodGet, "/stats/mom-change", s.aliceToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	mc := s.decodeObject(rr)
	s.EqualValues(100, mc["previous"])
	s.EqualValues(90, mc["current"])
	s.EqualValues(-10, mc["percentChange"])

	rr = s.do(http.MethodGet, "/stats/predict-next", s.aliceToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.EqualValues(33.33, s.decodeObject(rr)["predictedNextMonth"])

	rr = s.do(http.MethodGet, "/stats/predict-next?userId="+s.aliceID, s.bobToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.EqualValues(0, s.decodeObject(rr)["predictedNextMonth"], "plain users only see their own figures")

	rr = s.do(http.MethodGet, "/stats/predict-next?userId="+s.aliceID, s.adminToken, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.EqualValues(33.33, s.decodeObject(rr)["predictedNextMonth"])
}

func (s *ServerSuite) TestMethodNotAllowed() {
	rr := s.do(http.MethodPatch, "/expenses", s.aliceToken, "")
	s.Equal(http.StatusMethodNotAllowed, rr.Code)
}

func TestAuthRateLimit(t *testing.T) {
	store := memory.New()
	srv := NewServer(":0", Deps{
		Auth: services.NewAuthService(store, auth.NewTokens(testSecret, time.Hour), auth.NewPasswords(4)),
	}, Options{AuthRateLimit: 2})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
		req.RemoteAddr = "198.51.100.1:1000"
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rr.Header().Get("Retry-After"))
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, "rate_limited", body["error"])
		}
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	srv := NewServer(":0", Deps{}, Options{CORSAllowedOrigins: []string{"https://app.example.com"}})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	req := httptest.NewRequest(http.MethodOptions, "/expenses", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
