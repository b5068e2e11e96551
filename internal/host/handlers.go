// Package host is a small web application that signs users in through the
// configured relying parties and keeps their accounts in memory.
package host

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/oidcrp/auth"
	"github.com/kbukum/oidcrp/auth/authctx"
	"github.com/kbukum/oidcrp/auth/oidc"
	apperrors "github.com/kbukum/oidcrp/errors"
	"github.com/kbukum/oidcrp/logger"
	"github.com/kbukum/oidcrp/server"
)

// Options configures the handlers.
type Options struct {
	CookieName   string        `yaml:"cookie_name" mapstructure:"cookie_name"`
	SecureCookie bool          `yaml:"secure_cookie" mapstructure:"secure_cookie"`
	SessionTTL   time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	// EnforcePrivacy sends anonymous visitors of any page to the default
	// provider's login.
	EnforcePrivacy     bool   `yaml:"enforce_privacy" mapstructure:"enforce_privacy"`
	PostLogoutRedirect string `yaml:"post_logout_redirect" mapstructure:"post_logout_redirect"`
	// TokenKey, when set, encrypts stored provider tokens at rest.
	TokenKey string `yaml:"token_key" mapstructure:"token_key"`
}

// ApplyDefaults fills unset fields.
func (o *Options) ApplyDefaults() {
	if o.CookieName == "" {
		o.CookieName = "oidcrp_session"
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 8 * time.Hour
	}
}

// Handler serves the login, callback, logout and profile endpoints.
type Handler struct {
	reg      *auth.Registry
	store    *Store
	sessions *Sessions
	opts     Options
	log      *logger.Logger
}

// NewHandler wires the handlers. store must be the oidc.Host the relying
// parties in reg were built with.
func NewHandler(reg *auth.Registry, store *Store, opts Options, log *logger.Logger) *Handler {
	opts.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		reg:      reg,
		store:    store,
		sessions: NewSessions(opts.SessionTTL),
		opts:     opts,
		log:      log.WithComponent("host"),
	}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.Use(h.EnforcePrivacy())
	r.GET("/", h.home)

	oauth := r.Group("/oauth")
	oauth.GET("/login/:provider", h.login)
	oauth.GET("/callback/:provider", h.callback)
	oauth.GET("/logout", h.logout)

	api := r.Group("/api", h.RequireSession())
	api.GET("/me", h.me)
}

// RequireSession rejects requests without a session and stores the
// principal in the request context.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := h.principal(c)
		if !ok {
			server.RespondWithError(c, apperrors.Unauthorized("no session"))
			return
		}
		c.Request = c.Request.WithContext(authctx.Set(c.Request.Context(), p))
		c.Next()
	}
}

// EnforcePrivacy redirects anonymous page requests to the default provider
// when Options.EnforcePrivacy is set. The OAuth endpoints, health and the
// API stay reachable.
func (h *Handler) EnforcePrivacy() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.opts.EnforcePrivacy || exempt(c.Request.URL.Path) {
			c.Next()
			return
		}
		if _, ok := h.principal(c); ok {
			c.Next()
			return
		}
		def, ok := h.reg.Default()
		if !ok {
			c.Next()
			return
		}
		target := "/oauth/login/" + url.PathEscape(def.Name()) + "?return_to=" + url.QueryEscape(c.Request.URL.RequestURI())
		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}

func exempt(path string) bool {
	for _, prefix := range []string{"/oauth/", "/api/", "/health"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (h *Handler) home(c *gin.Context) {
	_, signedIn := h.principal(c)
	server.RespondOK(c, gin.H{"signed_in": signedIn, "providers": h.reg.Names()})
}

func (h *Handler) login(c *gin.Context) {
	rp, ok := h.reg.Get(c.Param("provider"))
	if !ok {
		server.RespondWithError(c, apperrors.InvalidInput("provider", "unknown provider"))
		return
	}
	var opts []oidc.LoginOption
	if returnTo := c.Query("return_to"); returnTo != "" {
		opts = append(opts, oidc.WithReturnTo(returnTo))
	}
	if hint := c.Query("login_hint"); hint != "" {
		opts = append(opts, oidc.WithAuthParam("login_hint", hint))
	}
	redirect, err := rp.BeginLogin(c.Request.Context(), opts...)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, redirect)
}

func (h *Handler) callback(c *gin.Context) {
	ctx := c.Request.Context()
	rp, ok := h.reg.Get(c.Param("provider"))
	if !ok {
		server.RespondWithError(c, apperrors.InvalidInput("provider", "unknown provider"))
		return
	}
	id, err := rp.HandleCallback(ctx, c.Request.URL.Query())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := id.Err(); err != nil {
		server.RespondWithError(c, err)
		return
	}
	ref, err := rp.Complete(ctx, id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	// Drop any session the browser already had before starting a new one.
	if old, err := c.Cookie(h.opts.CookieName); err == nil {
		h.sessions.Delete(old)
	}
	sid := h.sessions.Create(&authctx.Principal{Ref: ref, Provider: rp.Name(), Subject: id.Subject})
	h.setCookie(c, sid, int(h.opts.SessionTTL.Seconds()))

	target := id.ReturnTo
	if target == "" {
		target = "/"
	}
	h.log.WithContext(ctx).Info("signed in", logger.Fields(logger.FieldProvider, rp.Name(), logger.FieldAction, string(id.Action)))
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) logout(c *gin.Context) {
	ctx := c.Request.Context()
	p, ok := h.principal(c)
	h.endSession(c)
	target := "/"
	if ok {
		if rp, found := h.reg.Get(p.Provider); found {
			var hint string
			if tokens, err := h.store.LoadTokens(ctx, p.Ref); err == nil && tokens != nil {
				hint = tokens.IDToken
			}
			if u, err := rp.EndSessionURL(hint, h.opts.PostLogoutRedirect); err == nil {
				target = u
			}
		}
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) me(c *gin.Context) {
	ctx := c.Request.Context()
	p := authctx.MustGet(ctx)
	rp, ok := h.reg.Get(p.Provider)
	if !ok {
		h.endSession(c)
		server.RespondWithError(c, apperrors.Unauthorized("provider no longer configured"))
		return
	}
	tokens, err := rp.RefreshIfNeeded(ctx, p.Ref)
	if err != nil {
		if errors.Is(err, oidc.ErrSessionExpired) {
			h.endSession(c)
		}
		server.RespondWithError(c, err)
		return
	}
	account, ok := h.store.Account(p.Ref)
	if !ok {
		h.endSession(c)
		server.RespondWithError(c, apperrors.Unauthorized("account removed"))
		return
	}
	server.RespondOK(c, gin.H{"account": account, "token_expires_at": tokens.ExpiresAt()})
}

func (h *Handler) principal(c *gin.Context) (*authctx.Principal, bool) {
	sid, err := c.Cookie(h.opts.CookieName)
	if err != nil {
		return nil, false
	}
	return h.sessions.Get(sid)
}

func (h *Handler) endSession(c *gin.Context) {
	if sid, err := c.Cookie(h.opts.CookieName); err == nil {
		h.sessions.Delete(sid)
	}
	h.setCookie(c, "", -1)
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.opts.CookieName, value, maxAge, "/", "", h.opts.SecureCookie, true)
}
