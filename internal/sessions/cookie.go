package sessions

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const CookieName = "session"

func SetCookie(c *gin.Context, token string, lifetime time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(lifetime.Seconds()), "/", "", secure, true)
}

func ClearCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}
