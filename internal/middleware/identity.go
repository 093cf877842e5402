package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-booking/internal/auth"
)

// Identity returns the caller stored by JWTAuth or OptionalJWT.  ok is false
// for anonymous requests.
func Identity(c echo.Context) (auth.Identity, bool) {
	uid, ok := c.Get(ctxUserID).(uint64)
	if !ok || uid == 0 {
		return auth.Identity{}, false
	}
	role, _ := c.Get(ctxRole).(string)
	return auth.Identity{UserID: uid, Role: role}, true
}

// userKey identifies the caller for rate-limit keys, "guest" when anonymous.
func userKey(c echo.Context) string {
	if id, ok := Identity(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "guest"
}
