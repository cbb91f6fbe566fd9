package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditerr"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/transport"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestFromToken_Claims(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{
		"sub":      "42",
		"username": "alice",
		"role":     "ADMIN",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	s, err := FromToken("Bearer " + raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username())
	assert.Equal(t, "ADMIN", s.Role())
	assert.True(t, s.IsAuthenticated())
	assert.Empty(t, s.CurrentExternalID())

	withID := s.WithExternalID("ext-123")
	assert.Equal(t, "ext-123", withID.CurrentExternalID())
	assert.Empty(t, s.CurrentExternalID(), "WithExternalID must not mutate the receiver")
}

func TestFromToken_SubjectFallback(t *testing.T) {
	s, err := FromToken(signedToken(t, jwt.MapClaims{"sub": "bob"}))
	require.NoError(t, err)
	assert.Equal(t, "bob", s.Username())
	assert.True(t, s.IsAuthenticated(), "token without exp stays valid")
}

func TestFromToken_Expired(t *testing.T) {
	s, err := FromToken(signedToken(t, jwt.MapClaims{
		"sub": "bob",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}))
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())
}

func TestFromToken_Garbage(t *testing.T) {
	_, err := FromToken("not-a-jwt")
	assert.Error(t, err)
	_, err = FromToken("")
	assert.Error(t, err)
}

func newIdentity(t *testing.T, h http.HandlerFunc) *IdentityClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := transport.New(srv.URL)
	require.NoError(t, err)
	return NewIdentityClient(c, "")
}

func TestFetchExternalID_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"json string", `"ext-abc"`},
		{"camel object", `{"externalId":"ext-abc"}`},
		{"snake object", `{"external_id":"ext-abc"}`},
		{"plain text", "ext-abc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic := newIdentity(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, DefaultExternalIDPath, r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			})
			id, err := ic.FetchExternalID(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "ext-abc", id)
		})
	}
}

func TestFetchExternalID_Unauthorized(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		ic := newIdentity(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"message":"token expired","logout":true}`))
		})
		_, err := ic.FetchExternalID(context.Background())
		assert.ErrorIs(t, err, auditerr.ErrAuthRequired, "status %d", code)
	}
}

func TestFetchExternalID_Empty(t *testing.T) {
	ic := newIdentity(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`""`))
	})
	_, err := ic.FetchExternalID(context.Background())
	assert.ErrorIs(t, err, auditerr.ErrTransport)
}

func TestResolve_NoTokenUsesConfiguredExternalID(t *testing.T) {
	s, err := Resolve(context.Background(), "", "ext-cfg", nil)
	require.NoError(t, err)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "ext-cfg", s.CurrentExternalID())

	s, err = Resolve(context.Background(), "", "", nil)
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())
}

func TestResolve_FetchesExternalID(t *testing.T) {
	ic := newIdentity(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"ext-fetched"`))
	})
	tok := signedToken(t, jwt.MapClaims{"sub": "carol", "exp": time.Now().Add(time.Hour).Unix()})

	s, err := Resolve(context.Background(), tok, "", ic)
	require.NoError(t, err)
	assert.Equal(t, "ext-fetched", s.CurrentExternalID())
	assert.Equal(t, "carol", s.Username())
}

func TestResolve_ExpiredToken(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"sub": "carol", "exp": time.Now().Add(-time.Hour).Unix()})
	_, err := Resolve(context.Background(), tok, "ext", nil)
	assert.ErrorIs(t, err, auditerr.ErrAuthRequired)
}
