package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func GETIndex(c *gin.Context) {
	if user := currentUser(c); user != nil {
		c.Redirect(http.StatusFound, fmt.Sprintf("/u/%s/", user.Username))
		return
	}
	c.HTML(http.StatusOK, "index.html", page(c, "", nil))
}

func GETHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func NoRoute(c *gin.Context) {
	renderNotFound(c)
}
