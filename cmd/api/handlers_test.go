package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoideee/libmgs/internal/circulation"
	"github.com/aoideee/libmgs/internal/data"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

type testResponse struct {
	status int
	header http.Header
	body   map[string]any
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	models := data.NewMemoryModels()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var cfg serverConfig
	cfg.environment = "testing"
	cfg.circulation.loanDays = 14
	cfg.staff.username = "librarian"
	cfg.staff.password = "s3cret-pass"

	app := &applicationDependencies{
		config:  cfg,
		logger:  logger,
		models:  models,
		service: circulation.New(models, logger, circulation.DefaultConfig()),
	}
	require.NoError(t, app.bootstrapStaff(t.Context()))
	// A second start must find the account and leave it alone.
	require.NoError(t, app.bootstrapStaff(t.Context()))

	return &testServer{t: t, handler: app.routes()}
}

func (ts *testServer) do(r *http.Request) testResponse {
	ts.t.Helper()

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, r)

	res := testResponse{status: rr.Code, header: rr.Header()}
	if rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(ts.t, json.Unmarshal(rr.Body.Bytes(), &res.body))
	}
	return res
}

func (ts *testServer) request(method, path, token string, body any) testResponse {
	ts.t.Helper()

	var reader io.Reader
	if body != nil {
		js, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(js)
	}

	r := httptest.NewRequest(method, path, reader)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return ts.do(r)
}

func tokenOf(t *testing.T, res testResponse) string {
	t.Helper()
	tok, ok := res.body["authentication_token"].(map[string]any)
	require.True(t, ok, "response has no authentication_token: %v", res.body)
	return tok["token"].(string)
}

func (ts *testServer) login(username, password string) string {
	ts.t.Helper()
	res := ts.request(http.MethodPost, "/accounts/login/", "", map[string]string{"username": username, "password": password})
	require.Equal(ts.t, http.StatusCreated, res.status, res.body)
	return tokenOf(ts.t, res)
}

func (ts *testServer) signUp(username string) (token, membershipID string) {
	ts.t.Helper()
	res := ts.request(http.MethodPost, "/signup/", "", map[string]string{
		"username":         username,
		"email":            username + "@example.com",
		"first_name":       "Test",
		"last_name":        "Reader",
		"password":         "pa55word!",
		"password_confirm": "pa55word!",
		"phone_number":     "5551234",
		"address":          "1 Main St",
	})
	require.Equal(ts.t, http.StatusCreated, res.status, res.body)
	member := res.body["member"].(map[string]any)
	return tokenOf(ts.t, res), member["membership_id"].(string)
}

func (ts *testServer) addBook(staffToken string, book map[string]any) map[string]any {
	ts.t.Helper()
	res := ts.request(http.MethodPost, "/books/add/", staffToken, book)
	require.Equal(ts.t, http.StatusCreated, res.status, res.body)
	return res.body["book"].(map[string]any)
}

func TestHealthcheck(t *testing.T) {
	ts := newTestServer(t)

	res := ts.request(http.MethodGet, "/healthcheck/", "", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "available", res.body["status"])
	assert.Equal(t, appVersion, res.body["system_info"].(map[string]any)["version"])
}

func TestCatalogSearch(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.login("librarian", "s3cret-pass")

	ts.addBook(staff, map[string]any{"title": "The Two Towers", "author": "J.R.R. Tolkien", "isbn": "9780261102361", "genre": "Fantasy"})
	ts.addBook(staff, map[string]any{"title": "Dune", "author": "Frank Herbert", "isbn": "9780441172719", "genre": "Sci-Fi"})
	ts.addBook(staff, map[string]any{"title": "The Hobbit", "author": "J.R.R. Tolkien", "isbn": "9780261102217", "genre": "Fantasy"})

	res := ts.request(http.MethodGet, "/?q=tolkien", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	books := res.body["books"].([]any)
	require.Len(t, books, 2)
	assert.Equal(t, "The Hobbit", books[0].(map[string]any)["title"])

	res = ts.request(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.body["books"], 3)
}

func TestCirculationFlow(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.login("librarian", "s3cret-pass")
	memberToken, membershipID := ts.signUp("bilbo")

	book := ts.addBook(staff, map[string]any{
		"title": "The Hobbit", "author": "J.R.R. Tolkien", "isbn": "9780261102217", "genre": "Fantasy",
		"total_copies": 1, "available_copies": 1,
	})
	assert.EqualValues(t, 1, book["available_copies"])

	res := ts.request(http.MethodPost, "/issue/", staff, map[string]string{"isbn": "9780261102217", "membership_id": membershipID})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	assert.Equal(t, "Book 'The Hobbit' issued to member "+membershipID+".", res.body["message"])
	txnID := int64(res.body["transaction"].(map[string]any)["transaction_id"].(float64))

	res = ts.request(http.MethodPost, "/issue/", staff, map[string]string{"isbn": "9780261102217", "membership_id": membershipID})
	assert.Equal(t, http.StatusConflict, res.status)

	res = ts.request(http.MethodGet, "/transactions/", staff, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.body["transactions"], 1)

	res = ts.request(http.MethodGet, "/dashboard/", memberToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.body["transactions"], 1)

	returnPath := "/return/" + jsonInt(txnID) + "/"
	res = ts.request(http.MethodPost, returnPath, staff, nil)
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "Book returned. Fine: $0.00", res.body["message"])

	res = ts.request(http.MethodPost, returnPath, staff, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "This book has already been returned.", res.body["warning"])

	res = ts.request(http.MethodGet, "/admin-dashboard/", staff, nil)
	require.Equal(t, http.StatusOK, res.status)
	summary := res.body["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["total_books"])
	assert.EqualValues(t, 0, summary["issued_books"])
	assert.EqualValues(t, 1, summary["available_books"])
	assert.EqualValues(t, 1, summary["total_members"])
}

func jsonInt(n int64) string {
	js, _ := json.Marshal(n)
	return string(js)
}

func TestIssueErrors(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.login("librarian", "s3cret-pass")
	_, membershipID := ts.signUp("bilbo")

	res := ts.request(http.MethodPost, "/issue/", staff, map[string]string{"isbn": "0000000000000", "membership_id": membershipID})
	assert.Equal(t, http.StatusNotFound, res.status)

	res = ts.request(http.MethodPost, "/issue/", staff, map[string]string{"isbn": "", "membership_id": ""})
	require.Equal(t, http.StatusUnprocessableEntity, res.status)
	assert.Contains(t, res.body["error"], "isbn")

	res = ts.request(http.MethodPost, "/issue/", staff, map[string]string{"isbn": "x", "unexpected": "y"})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = ts.request(http.MethodPost, "/return/999/", staff, nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = ts.request(http.MethodPost, "/return/abc/", staff, nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestAccessControl(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.login("librarian", "s3cret-pass")
	member, _ := ts.signUp("frodo")

	staffRoutes := []struct{ method, path string }{
		{http.MethodGet, "/admin-dashboard/"},
		{http.MethodGet, "/issue/"},
		{http.MethodPost, "/return/1/"},
		{http.MethodGet, "/transactions/"},
		{http.MethodGet, "/books/manage/"},
		{http.MethodGet, "/books/add/"},
		{http.MethodGet, "/books/delete/1/"},
	}
	for _, route := range staffRoutes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, ts.request(route.method, route.path, "", nil).status)
			assert.Equal(t, http.StatusForbidden, ts.request(route.method, route.path, member, nil).status)
		})
	}

	assert.Equal(t, http.StatusUnauthorized, ts.request(http.MethodGet, "/dashboard/", "", nil).status)
	assert.Equal(t, http.StatusUnauthorized, ts.request(http.MethodGet, "/", "not-a-real-token", nil).status)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, ts.do(r).status)

	res := ts.request(http.MethodGet, "/dashboard/", staff, nil)
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/admin-dashboard/", res.header.Get("Location"))
}

func TestSessionCookieAndLogout(t *testing.T) {
	ts := newTestServer(t)

	res := ts.request(http.MethodPost, "/signup/", "", map[string]string{
		"username": "sam", "email": "sam@example.com",
		"password": "pa55word!", "password_confirm": "pa55word!",
		"phone_number": "5551234", "address": "Bag End",
	})
	require.Equal(t, http.StatusCreated, res.status, res.body)

	cookies := (&http.Response{Header: res.header}).Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/dashboard/", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookies[0].Value})
	assert.Equal(t, http.StatusOK, ts.do(r).status)

	res = ts.request(http.MethodPost, "/accounts/logout/", cookies[0].Value, nil)
	require.Equal(t, http.StatusOK, res.status)

	assert.Equal(t, http.StatusUnauthorized, ts.request(http.MethodGet, "/dashboard/", cookies[0].Value, nil).status)

	res = ts.request(http.MethodPost, "/accounts/login/", "", map[string]string{"username": "sam", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestStaleCookieFallsBackToAnonymous(t *testing.T) {
	ts := newTestServer(t)
	ts.signUp("sam")

	first := ts.login("sam", "pa55word!")
	second := ts.login("sam", "pa55word!")

	res := ts.request(http.MethodPost, "/accounts/logout/", first, nil)
	require.Equal(t, http.StatusOK, res.status)

	withCookie := func(method, path string, body any) testResponse {
		var reader io.Reader
		if body != nil {
			js, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(js)
		}
		r := httptest.NewRequest(method, path, reader)
		r.AddCookie(&http.Cookie{Name: sessionCookie, Value: second})
		return ts.do(r)
	}

	res = withCookie(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, res.status)
	cookies := (&http.Response{Header: res.header}).Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)

	res = withCookie(http.MethodPost, "/accounts/login/", map[string]string{"username": "sam", "password": "pa55word!"})
	require.Equal(t, http.StatusCreated, res.status, res.body)
	assert.NotEqual(t, second, tokenOf(t, res))

	assert.Equal(t, http.StatusUnauthorized, withCookie(http.MethodGet, "/dashboard/", nil).status)
	assert.Equal(t, http.StatusUnauthorized, ts.request(http.MethodGet, "/", second, nil).status)
}

func TestSignupValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.signUp("taken")

	res := ts.request(http.MethodPost, "/signup/", "", map[string]string{
		"username": "taken", "email": "other@example.com",
		"password": "pa55word!", "password_confirm": "nope",
		"phone_number": "5551234", "address": "x",
	})
	require.Equal(t, http.StatusUnprocessableEntity, res.status)
	errs := res.body["error"].(map[string]any)
	assert.Contains(t, errs, "password_confirm")

	res = ts.request(http.MethodPost, "/signup/", "", map[string]string{
		"username": "taken", "email": "other@example.com",
		"password": "pa55word!", "password_confirm": "pa55word!",
		"phone_number": "5551234", "address": "x",
	})
	require.Equal(t, http.StatusUnprocessableEntity, res.status)
	assert.Contains(t, res.body["error"], "username")
}

func TestBookManagementHandlers(t *testing.T) {
	ts := newTestServer(t)
	staff := ts.login("librarian", "s3cret-pass")

	res := ts.request(http.MethodPost, "/books/add/", staff, map[string]any{"title": "", "isbn": "123"})
	require.Equal(t, http.StatusUnprocessableEntity, res.status)
	errs := res.body["error"].(map[string]any)
	assert.Contains(t, errs, "title")
	assert.Contains(t, errs, "isbn")

	book := ts.addBook(staff, map[string]any{"title": "Dune", "author": "Frank Herbert", "isbn": "9780441172719", "genre": "Sci-Fi", "total_copies": 3, "available_copies": 3})
	ts.addBook(staff, map[string]any{"title": "Emma", "author": "Jane Austen", "isbn": "9780141439587", "genre": "Classic"})
	id := jsonInt(int64(book["book_id"].(float64)))

	res = ts.request(http.MethodPost, "/books/add/", staff, map[string]any{"title": "Dune", "author": "Frank Herbert", "isbn": "9780441172719", "genre": "Sci-Fi"})
	assert.Equal(t, http.StatusConflict, res.status)

	res = ts.request(http.MethodGet, "/books/manage/?page_size=1&sort=-title", staff, nil)
	require.Equal(t, http.StatusOK, res.status)
	books := res.body["books"].([]any)
	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].(map[string]any)["title"])
	assert.EqualValues(t, 2, res.body["metadata"].(map[string]any)["total_records"])

	res = ts.request(http.MethodGet, "/books/manage/?sort=isbn", staff, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.status)

	res = ts.request(http.MethodGet, "/books/edit/"+id+"/", staff, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Dune", res.body["book"].(map[string]any)["title"])

	res = ts.request(http.MethodPost, "/books/edit/"+id+"/", staff, map[string]any{
		"title": "Dune", "author": "Frank Herbert", "isbn": "9780441172719", "genre": "Sci-Fi",
		"total_copies": 2, "available_copies": 3,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.status)

	res = ts.request(http.MethodPost, "/books/edit/"+id+"/", staff, map[string]any{
		"title": "Dune", "author": "Frank Herbert", "isbn": "9780441172719", "genre": "Science Fiction",
		"total_copies": 5, "available_copies": 5,
	})
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Science Fiction", res.body["book"].(map[string]any)["genre"])

	res = ts.request(http.MethodGet, "/books/delete/"+id+"/", staff, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body["confirm"], "Dune")

	res = ts.request(http.MethodPost, "/books/delete/"+id+"/", staff, nil)
	require.Equal(t, http.StatusOK, res.status)

	assert.Equal(t, http.StatusNotFound, ts.request(http.MethodGet, "/books/edit/"+id+"/", staff, nil).status)
	assert.Equal(t, http.StatusNotFound, ts.request(http.MethodPost, "/books/delete/"+id+"/", staff, nil).status)
}

func TestRateLimit(t *testing.T) {
	models := data.NewMemoryModels()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var cfg serverConfig
	cfg.limiter.enabled = true
	cfg.limiter.rps = 1
	cfg.limiter.burst = 2

	app := &applicationDependencies{config: cfg, logger: logger, models: models, service: circulation.New(models, logger, circulation.DefaultConfig())}
	ts := &testServer{t: t, handler: app.routes()}

	assert.Equal(t, http.StatusOK, ts.request(http.MethodGet, "/healthcheck/", "", nil).status)
	assert.Equal(t, http.StatusOK, ts.request(http.MethodGet, "/healthcheck/", "", nil).status)
	assert.Equal(t, http.StatusTooManyRequests, ts.request(http.MethodGet, "/healthcheck/", "", nil).status)
}
