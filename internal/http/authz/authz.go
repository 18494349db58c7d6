// Package authz reads the identity asserted by the gateway and runs
// capability checks against it before a handler executes.
package authz

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sealedbid/internal/apperr"
	"sealedbid/internal/http/respond"
)

type Role string

const (
	Admin       Role = "admin"
	Creator     Role = "bid-creator"
	Participant Role = "bid-participant"
)

func (r Role) Valid() bool {
	return r == Admin || r == Creator || r == Participant
}

const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-User-Role"

	identityKey = "authz.identity"
)

type Identity struct {
	UserID int64
	Role   Role
}

// FromHeaders parses the gateway headers. Both must be present and well formed.
func FromHeaders(h http.Header) (Identity, error) {
	raw := strings.TrimSpace(h.Get(HeaderUserID))
	if raw == "" {
		return Identity{}, apperr.New(apperr.Unauthorized, "missing "+HeaderUserID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, apperr.New(apperr.Unauthorized, "malformed "+HeaderUserID)
	}
	role := Role(strings.ToLower(strings.TrimSpace(h.Get(HeaderRole))))
	if !role.Valid() {
		return Identity{}, apperr.New(apperr.Unauthorized, "missing or unknown "+HeaderRole)
	}
	return Identity{UserID: id, Role: role}, nil
}

// Check is one capability predicate. Checks compose with All.
type Check func(Identity) error

func AnyRole(roles ...Role) Check {
	return func(id Identity) error {
		if slices.Contains(roles, id.Role) {
			return nil
		}
		return apperr.Newf(apperr.Forbidden, "role %s may not perform this action", id.Role)
	}
}

func All(checks ...Check) Check {
	return func(id Identity) error {
		for _, chk := range checks {
			if err := chk(id); err != nil {
				return err
			}
		}
		return nil
	}
}

// Identify attaches the caller identity to the request or rejects it with 401.
func Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := FromHeaders(c.Request.Header)
		if err != nil {
			respond.Error(c, err, false)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// Require runs the checks against the identity set by Identify.
func Require(checks ...Check) gin.HandlerFunc {
	chk := All(checks...)
	return func(c *gin.Context) {
		id, ok := Get(c)
		if !ok {
			respond.Error(c, apperr.New(apperr.Unauthorized, "no identity"), false)
			return
		}
		if err := chk(id); err != nil {
			respond.Error(c, err, false)
			return
		}
		c.Next()
	}
}

func Get(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
