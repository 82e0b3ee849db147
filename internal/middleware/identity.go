package middleware

// identity.go holds the helpers the limiter uses to name the caller.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// currentUserID renders the authenticated user id for use in a Redis key.
// Requests without one share the "anon" bucket for their IP.
func currentUserID(c echo.Context) string {
    switch v := c.Get("user_id").(type) {
    case uint64:
        if v != 0 {
            return strconv.FormatUint(v, 10)
        }
    case string:
        if v != "" {
            return v
        }
    }
    return "anon"
}
