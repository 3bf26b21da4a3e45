package controllers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/USA-RedDragon/crashula/internal/db/models"
	"github.com/USA-RedDragon/crashula/internal/server/forms"
	"github.com/USA-RedDragon/crashula/internal/sessions"
	"github.com/USA-RedDragon/crashula/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SafeNext accepts only local absolute paths as a post-login redirect.
func SafeNext(next string) (string, bool) {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	return next, true
}

func login(c *gin.Context, user models.User) bool {
	config, ok := getConfig(c)
	if !ok {
		return false
	}
	token, _, err := utils.GenerateJWT(config.Session.Secret, user.ID, config.Session.Lifetime)
	if err != nil {
		renderServerError(c, "Failed to generate session", err)
		return false
	}
	sessions.SetCookie(c, token, config.Session.Lifetime, config.HTTP.SecureCookies)
	return true
}

func GETLogin(c *gin.Context) {
	form := forms.LoginForm{Next: c.Query("next")}
	c.HTML(http.StatusOK, "login.html", page(c, "Log in", gin.H{
		"Form":   form,
		"Errors": forms.Errors{},
	}))
}

func POSTLogin(c *gin.Context) {
	db, ok := getDB(c)
	if !ok {
		return
	}

	values, err := postForm(c)
	if err != nil {
		c.HTML(http.StatusBadRequest, "login.html", page(c, "Log in", gin.H{
			"Form":   forms.LoginForm{},
			"Errors": forms.Errors{forms.NonFieldErrors: "Invalid form submission."},
		}))
		return
	}

	var form forms.LoginForm
	errs := forms.Bind(values, &form)
	if len(errs) == 0 {
		user, err := models.Authenticate(db, form.Username, form.Password)
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			getMetrics(c).IncrementLogins(false)
			errs.Add(forms.NonFieldErrors, "Please enter a correct username and password.")
		case err != nil:
			renderServerError(c, "Failed to authenticate", err)
			return
		default:
			getMetrics(c).IncrementLogins(true)
			if !login(c, user) {
				return
			}
			next, ok := SafeNext(form.Next)
			if !ok {
				next = "/"
			}
			slog.Info("User logged in", "username", user.Username)
			c.Redirect(http.StatusFound, next)
			return
		}
	}

	form.Password = ""
	c.HTML(http.StatusOK, "login.html", page(c, "Log in", gin.H{
		"Form":   form,
		"Errors": errs,
	}))
}

func POSTLogout(c *gin.Context) {
	config, ok := getConfig(c)
	if !ok {
		return
	}
	if claims, ok := c.Get("session"); ok {
		if claims, ok := claims.(utils.SessionClaims); ok {
			revoker, _ := c.MustGet("revoker").(sessions.Revoker)
			if revoker != nil {
				err := revoker.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time)
				if err != nil {
					slog.Error("Failed to revoke session", "error", err)
				}
			}
		}
	}
	sessions.ClearCookie(c, config.HTTP.SecureCookies)
	c.Redirect(http.StatusFound, "/")
}

func registrationEnabled(c *gin.Context) bool {
	config, ok := getConfig(c)
	if !ok {
		return false
	}
	if !config.Registration.Enabled {
		renderNotFound(c)
		return false
	}
	return true
}

func GETRegister(c *gin.Context) {
	if !registrationEnabled(c) {
		return
	}
	c.HTML(http.StatusOK, "register.html", page(c, "Register", gin.H{
		"Form":   forms.RegisterForm{},
		"Errors": forms.Errors{},
	}))
}

func POSTRegister(c *gin.Context) {
	if !registrationEnabled(c) {
		return
	}
	db, ok := getDB(c)
	if !ok {
		return
	}

	values, err := postForm(c)
	if err != nil {
		c.HTML(http.StatusBadRequest, "register.html", page(c, "Register", gin.H{
			"Form":   forms.RegisterForm{},
			"Errors": forms.Errors{forms.NonFieldErrors: "Invalid form submission."},
		}))
		return
	}

	var form forms.RegisterForm
	errs := forms.Bind(values, &form)
	if len(errs) == 0 {
		exists, err := models.UsernameExists(db, form.Username)
		if err != nil {
			renderServerError(c, "Failed to check username", err)
			return
		}
		if exists {
			errs.Add("username", "A user with that username already exists.")
		}
	}
	if len(errs) == 0 {
		user, err := models.CreateUser(db, form.Username, form.Password)
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			errs.Add("username", "A user with that username already exists.")
		case err != nil:
			renderServerError(c, "Failed to create user", err)
			return
		default:
			slog.Info("User registered", "username", user.Username)
			if !login(c, user) {
				return
			}
			c.Redirect(http.StatusFound, fmt.Sprintf("/u/%s/", user.Username))
			return
		}
	}

	form.Password = ""
	form.Confirmation = ""
	c.HTML(http.StatusOK, "register.html", page(c, "Register", gin.H{
		"Form":   form,
		"Errors": errs,
	}))
}
