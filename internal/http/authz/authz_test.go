package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealedbid/internal/apperr"
)

func TestFromHeaders(t *testing.T) {
	cases := []struct {
		name   string
		userID string
		role   string
		want   Identity
		kind   apperr.Kind
		wantOK bool
	}{
		{name: "participant", userID: "42", role: "bid-participant", want: Identity{42, Participant}, wantOK: true},
		{name: "role is case insensitive", userID: "7", role: " Admin ", want: Identity{7, Admin}, wantOK: true},
		{name: "missing user", role: "admin", kind: apperr.Unauthorized},
		{name: "non numeric user", userID: "bob", role: "admin", kind: apperr.Unauthorized},
		{name: "negative user", userID: "-3", role: "admin", kind: apperr.Unauthorized},
		{name: "unknown role", userID: "3", role: "superuser", kind: apperr.Unauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.userID != "" {
				h.Set(HeaderUserID, tc.userID)
			}
			h.Set(HeaderRole, tc.role)
			got, err := FromHeaders(h)
			if tc.wantOK {
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
				return
			}
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}

func TestChecksCompose(t *testing.T) {
	creator := Identity{UserID: 1, Role: Creator}
	assert.NoError(t, AnyRole(Admin, Creator)(creator))
	assert.True(t, apperr.IsKind(AnyRole(Participant)(creator), apperr.Forbidden))

	notUser1 := func(id Identity) error {
		if id.UserID == 1 {
			return apperr.New(apperr.Forbidden, "nope")
		}
		return nil
	}
	assert.Error(t, All(AnyRole(Creator), notUser1)(creator))
	assert.NoError(t, All()(creator))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identify())
	r.POST("/only-admins", Require(AnyRole(Admin)), func(c *gin.Context) {
		id, _ := Get(c)
		c.JSON(http.StatusOK, gin.H{"user": id.UserID})
	})

	do := func(userID, role string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/only-admins", nil)
		if userID != "" {
			req.Header.Set(HeaderUserID, userID)
		}
		req.Header.Set(HeaderRole, role)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("", "admin").Code)
	assert.Equal(t, http.StatusForbidden, do("5", "bid-creator").Code)

	w := do("5", "admin")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":5}`, w.Body.String())
}
