package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/mealplanner/backend/config"
	"github.com/pageza/mealplanner/backend/internal/server"
	"github.com/pageza/mealplanner/backend/internal/testhelpers"
	"github.com/pageza/mealplanner/backend/internal/types"
)

const jwtSecret = "integration-secret"

type client struct {
	t       *testing.T
	handler http.Handler
}

func setup(t *testing.T) *client {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		ServerHost:              "127.0.0.1",
		ServerPort:              "0",
		AuthJWTSecret:           jwtSecret,
		CookieSecret:            strings.Repeat("k", 32),
		CookieName:              config.DefaultCookieName,
		GuestCacheTTL:           config.DefaultGuestCacheTTL,
		GuestCacheSweepInterval: config.DefaultGuestCacheSweepInterval,
		ConversionRateLimit:     config.DefaultConversionRateLimit,
	}
	srv, err := server.New(cfg, testhelpers.SetupSQLite(t), nil)
	require.NoError(t, err)
	return &client{t: t, handler: srv.Handler()}
}

// do sends a request carrying the given guest cookie and bearer token, either
// of which may be empty.
func (c *client) do(method, path, cookie, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: config.DefaultCookieName, Value: cookie})
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

func guestCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == config.DefaultCookieName {
			return ck
		}
	}
	return nil
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// identify resolves a fresh guest and returns its cookie and identity.
func (c *client) identify() (string, types.IdentityResponse) {
	c.t.Helper()
	w := c.do(http.MethodGet, "/api/v1/identity", "", "", nil)
	require.Equal(c.t, http.StatusOK, w.Code)
	ck := guestCookie(c.t, w)
	require.NotNil(c.t, ck, "new guests receive a cookie")
	ident := decode[types.IdentityResponse](c.t, w)
	require.Equal(c.t, types.OwnerGuest, ident.Kind)
	require.NotNil(c.t, ident.GuestID)
	require.NotEmpty(c.t, ident.ConversionToken)
	return ck.Value, ident
}

func TestGuestWorkFollowsSignUp(t *testing.T) {
	c := setup(t)
	cookie, guest := c.identify()

	w := c.do(http.MethodPost, "/api/v1/conversations", cookie, "", map[string]string{"title": "weeknight pasta"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Nil(t, guestCookie(t, w), "a known guest is not re-issued a cookie")

	w = c.do(http.MethodPost, "/api/v1/recipes", cookie, "", map[string]any{
		"name":         "Cacio e pepe",
		"ingredients":  []string{"pasta", "pecorino", "pepper"},
		"instructions": []string{"boil", "toss"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	token := testhelpers.SignToken(t, jwtSecret, "user-42", "cook@example.com")

	w = c.do(http.MethodGet, "/api/v1/conversations", "", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[map[string][]map[string]any](t, w)["conversations"])

	w = c.do(http.MethodPost, "/api/v1/guest/convert", cookie, token, types.ConvertGuestRequest{
		GuestID:         *guest.GuestID,
		ConversionToken: guest.ConversionToken,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[types.ConvertGuestResponse](t, w)
	assert.Equal(t, "converted", resp.Outcome)
	assert.Equal(t, "user-42", resp.UserID)
	expired := guestCookie(t, w)
	require.NotNil(t, expired)
	assert.Less(t, expired.MaxAge, 0)

	w = c.do(http.MethodGet, "/api/v1/conversations", "", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	convs := decode[map[string][]map[string]any](t, w)["conversations"]
	require.Len(t, convs, 1)
	assert.Equal(t, "weeknight pasta", convs[0]["title"])
	assert.Equal(t, "user-42", convs[0]["owner_profile_id"])

	w = c.do(http.MethodGet, "/api/v1/recipes", "", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]map[string]any](t, w)["recipes"], 1)

	w = c.do(http.MethodGet, "/api/v1/identity", "", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	ident := decode[types.IdentityResponse](t, w)
	assert.Equal(t, types.OwnerUser, ident.Kind)
	assert.Equal(t, "user-42", ident.UserID)
	assert.Equal(t, "cook@example.com", ident.Email)
	assert.Empty(t, ident.ConversionToken)

	// Retrying is harmless.
	w = c.do(http.MethodPost, "/api/v1/guest/convert", "", token, types.ConvertGuestRequest{
		GuestID:         *guest.GuestID,
		ConversionToken: guest.ConversionToken,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "already_converted", decode[types.ConvertGuestResponse](t, w).Outcome)

	other := testhelpers.SignToken(t, jwtSecret, "user-99", "")
	w = c.do(http.MethodPost, "/api/v1/guest/convert", "", other, types.ConvertGuestRequest{
		GuestID:         *guest.GuestID,
		ConversionToken: guest.ConversionToken,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "converted_to_different_user", decode[types.ConvertGuestResponse](t, w).Outcome)

	// The old cookie no longer resolves to the converted guest.
	w = c.do(http.MethodGet, "/api/v1/identity", cookie, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fresh := decode[types.IdentityResponse](t, w)
	require.NotNil(t, fresh.GuestID)
	assert.NotEqual(t, *guest.GuestID, *fresh.GuestID)
	assert.NotNil(t, guestCookie(t, w))

	w = c.do(http.MethodGet, "/api/v1/conversations", cookie, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[map[string][]map[string]any](t, w)["conversations"])
}

func TestConvertRejections(t *testing.T) {
	c := setup(t)
	_, guest := c.identify()
	token := testhelpers.SignToken(t, jwtSecret, "user-42", "")

	w := c.do(http.MethodPost, "/api/v1/guest/convert", "", token, types.ConvertGuestRequest{
		GuestID:         *guest.GuestID,
		ConversionToken: "not-the-secret",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "invalid_secret", decode[types.ConvertGuestResponse](t, w).Outcome)

	_, stranger := setup(t).identify()
	w = c.do(http.MethodPost, "/api/v1/guest/convert", "", token, types.ConvertGuestRequest{
		GuestID:         *stranger.GuestID,
		ConversionToken: stranger.ConversionToken,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "guest_not_found", decode[types.ConvertGuestResponse](t, w).Outcome)

	w = c.do(http.MethodPost, "/api/v1/guest/convert", "", "", types.ConvertGuestRequest{
		GuestID:         *guest.GuestID,
		ConversionToken: guest.ConversionToken,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "guests cannot convert themselves")

	w = c.do(http.MethodPost, "/api/v1/guest/convert", "", "garbage", types.ConvertGuestRequest{
		GuestID:         *guest.GuestID,
		ConversionToken: guest.ConversionToken,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, guestCookie(t, w), "a bad token is never downgraded to a guest")

	// The guest is untouched and can still convert.
	w = c.do(http.MethodPost, "/api/v1/guest/convert", "", token, types.ConvertGuestRequest{
		GuestID:         *guest.GuestID,
		ConversionToken: guest.ConversionToken,
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuestsAreIsolated(t *testing.T) {
	c := setup(t)
	alice, _ := c.identify()
	bob, _ := c.identify()

	w := c.do(http.MethodPost, "/api/v1/conversations", alice, "", map[string]string{"title": "alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]map[string]any](t, w)["conversation"]["id"].(string)

	w = c.do(http.MethodGet, "/api/v1/conversations/"+id, bob, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do(http.MethodDelete, "/api/v1/conversations/"+id, bob, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do(http.MethodGet, "/api/v1/conversations/"+id, alice, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
