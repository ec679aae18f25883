package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/config"
	"securechat/internal/feed"
	"securechat/internal/security"
	"securechat/internal/store"
	"securechat/internal/store/sqlite"
	"securechat/internal/ws"
)

type apiClient struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T) *apiClient {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	addrs, err := security.NewAddressHasher([]byte("addr-key"))
	require.NoError(t, err)
	enc, err := security.NewEncryptor([]byte("enc-key"), nil)
	require.NoError(t, err)
	broker := feed.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })

	cfg := &config.Config{AppName: "test", CORSOrigins: []string{"http://localhost:3000"}}
	handler := NewRouter(cfg, zerolog.Nop(), store.NewSQLite(db), ws.NewHub(), broker,
		security.NewTokenService("secret", time.Hour), security.NewPasswordHasher(4), addrs, enc)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &apiClient{t: t, srv: srv}
}

func (c *apiClient) do(method, path, token string, body any) (int, []byte) {
	c.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rdr)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Sec-CH-UA-Platform", `"Linux"`)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

type session struct {
	Token string
	ID    string
}

func (c *apiClient) register(name, password string) session {
	c.t.Helper()
	status, data := c.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": name, "email": name + "@x.com", "password": password,
	})
	require.Equal(c.t, http.StatusCreated, status, string(data))
	var resp struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(c.t, json.Unmarshal(data, &resp))
	return session{Token: resp.AccessToken, ID: resp.User.ID}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body))
	return body.Code
}

func TestAuthFlow(t *testing.T) {
	c := newTestServer(t)
	alice := c.register("alice", "secret1")

	t.Run("DuplicateRegistration", func(t *testing.T) {
		status, data := c.do(http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "alice", "email": "alice2@x.com", "password": "x",
		})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "duplicate_identity", errorCode(t, data))
	})

	t.Run("Login", func(t *testing.T) {
		status, data := c.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice", "password": "secret1",
		})
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(data), `"token_type":"bearer"`)
		assert.NotContains(t, string(data), "hashed_password")
		assert.NotContains(t, string(data), "address_hash")

		status, data = c.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "invalid_credentials", errorCode(t, data))
	})

	t.Run("Me", func(t *testing.T) {
		status, data := c.do(http.MethodGet, "/api/auth/me", alice.Token, nil)
		require.Equal(t, http.StatusOK, status)
		var me map[string]any
		require.NoError(t, json.Unmarshal(data, &me))
		assert.Equal(t, "alice", me["username"])
		assert.Equal(t, "test-agent", me["user_agent"])
		assert.Equal(t, "Linux", me["os"])

		status, _ = c.do(http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		status, _ = c.do(http.MethodGet, "/api/auth/me", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("Exists", func(t *testing.T) {
		status, data := c.do(http.MethodGet, "/api/users/exists?username=alice", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"exists":true}`, string(data))

		_, data = c.do(http.MethodGet, "/api/users/exists?username=nobody", "", nil)
		assert.JSONEq(t, `{"exists":false}`, string(data))

		status, _ = c.do(http.MethodGet, "/api/users/exists", "", nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("GetUser", func(t *testing.T) {
		status, data := c.do(http.MethodGet, "/api/users/"+alice.ID, alice.Token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(data), `"online":false`)

		status, _ = c.do(http.MethodGet, "/api/users/not-a-uuid", alice.Token, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("GetOtherUserHidesPrivateFields", func(t *testing.T) {
		bob := c.register("bob", "secret2")

		status, data := c.do(http.MethodGet, "/api/users/"+alice.ID, bob.Token, nil)
		require.Equal(t, http.StatusOK, status)
		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "alice", got["username"])
		assert.Equal(t, alice.ID, got["id"])
		for _, field := range []string{"email", "user_agent", "os", "last_login", "registration_date"} {
			assert.NotContains(t, got, field)
		}

		_, data = c.do(http.MethodGet, "/api/users/"+alice.ID, alice.Token, nil)
		assert.Contains(t, string(data), `"email":"alice@x.com"`)
	})

	t.Run("RegisterRejectsOversizedInput", func(t *testing.T) {
		for _, body := range []map[string]string{
			{"username": "long", "email": "long@x.com", "password": strings.Repeat("p", 100)},
			{"username": strings.Repeat("u", 51), "email": "u@x.com", "password": "p"},
		} {
			status, data := c.do(http.MethodPost, "/api/auth/register", "", body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "invalid_input", errorCode(t, data))
		}
	})
}

func TestContactsAndMessages(t *testing.T) {
	c := newTestServer(t)
	alice := c.register("alice", "secret1")
	bob := c.register("bob", "secret2")

	status, data := c.do(http.MethodPost, "/api/contacts", alice.Token, map[string]string{"username": "bob"})
	require.Equal(t, http.StatusCreated, status, string(data))

	status, data = c.do(http.MethodPost, "/api/contacts", alice.Token, map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_edge", errorCode(t, data))

	status, data = c.do(http.MethodPost, "/api/contacts", alice.Token, map[string]string{"username": "carol"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "target_not_found", errorCode(t, data))

	status, data = c.do(http.MethodGet, "/api/contacts", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"username":"bob","user_id":"`+bob.ID+`"}]`, string(data))

	status, data = c.do(http.MethodGet, "/api/contacts", bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(data))

	status, data = c.do(http.MethodPost, "/api/messages/"+bob.ID, alice.Token, map[string]string{"content": "hi"})
	require.Equal(t, http.StatusCreated, status, string(data))

	var fromAlice, fromBob []map[string]any
	_, data = c.do(http.MethodGet, "/api/messages/"+bob.ID, alice.Token, nil)
	require.NoError(t, json.Unmarshal(data, &fromAlice))
	_, data = c.do(http.MethodGet, "/api/messages/"+alice.ID, bob.Token, nil)
	require.NoError(t, json.Unmarshal(data, &fromBob))
	require.Len(t, fromAlice, 1)
	assert.Equal(t, fromAlice, fromBob)
	assert.Equal(t, "hi", fromAlice[0]["content"])
	assert.Equal(t, "alice", fromAlice[0]["sender"])

	status, data = c.do(http.MethodPost, "/api/messages/00000000-0000-0000-0000-000000000000", alice.Token,
		map[string]string{"content": "anyone?"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "participant_not_found", errorCode(t, data))

	status, _ = c.do(http.MethodDelete, "/api/contacts/"+bob.ID, alice.Token, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, data = c.do(http.MethodDelete, "/api/contacts/"+bob.ID, alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "edge_not_found", errorCode(t, data))
}

func TestGroups(t *testing.T) {
	c := newTestServer(t)
	alice := c.register("alice", "secret1")
	bob := c.register("bob", "secret2")
	carol := c.register("carol", "secret3")

	status, data := c.do(http.MethodPost, "/api/groups", alice.Token, map[string]string{"name": "team"})
	require.Equal(t, http.StatusCreated, status, string(data))
	var group struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &group))
	base := "/api/groups/" + jsonNumber(group.ID)

	status, data = c.do(http.MethodPost, "/api/groups", bob.Token, map[string]string{"name": "team"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_name", errorCode(t, data))

	status, _ = c.do(http.MethodPost, base+"/members", alice.Token,
		map[string][]string{"user_ids": {bob.ID, bob.ID}})
	require.Equal(t, http.StatusNoContent, status)

	status, data = c.do(http.MethodPost, base+"/members", carol.Token,
		map[string][]string{"user_ids": {carol.ID}})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_group_member", errorCode(t, data))

	status, data = c.do(http.MethodGet, base+"/members", bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var members []memberResponse
	require.NoError(t, json.Unmarshal(data, &members))
	assert.Len(t, members, 2)

	status, data = c.do(http.MethodPost, base+"/messages", alice.Token, map[string]string{"content": "hello team"})
	require.Equal(t, http.StatusCreated, status, string(data))
	assert.Contains(t, string(data), `"sender":"alice"`)

	status, data = c.do(http.MethodPost, base+"/messages", carol.Token, map[string]string{"content": "hi?"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_group_member", errorCode(t, data))

	status, data = c.do(http.MethodGet, base+"/messages", bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), "hello team")

	status, data = c.do(http.MethodGet, "/api/groups", bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"group_id":`+jsonNumber(group.ID)+`,"name":"team"}]`, string(data))

	status, data = c.do(http.MethodGet, "/api/groups/9999/messages", alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "group_not_found", errorCode(t, data))

	status, _ = c.do(http.MethodGet, "/api/groups/abc/messages", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestOpsEndpoints(t *testing.T) {
	c := newTestServer(t)

	status, data := c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, string(data))

	c.do(http.MethodGet, "/api/users/exists?username=x", "", nil)
	status, data = c.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), "securechat_http_requests_total")
}

func TestBadJSON(t *testing.T) {
	c := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, c.srv.URL+"/api/auth/login", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
