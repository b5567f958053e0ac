package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/middleware"
	"github.com/gin-gonic/gin"
)

const authResultKey = "adminauth.auth"

// Handler serves the login routes for one engine.
type Handler struct {
	engine *adminauth.Engine
	logger *slog.Logger
	guard  *adminauth.Pipeline
}

func NewHandler(engine *adminauth.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		engine: engine,
		logger: logger,
		guard:  adminauth.NewPipeline(engine),
	}
}

// NewRouter returns a gin engine with every route registered.
func NewRouter(engine *adminauth.Engine, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	NewHandler(engine, logger).Register(r)
	return r
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/login", h.Login)
	r.GET("/captchaImage", h.CaptchaImage)
	r.GET("/GenerateQrcode", h.GenerateQrcode)
	r.POST("/VerifyScan", h.VerifyScan)
	r.POST("/PhoneLogin", h.PhoneLogin)
	r.POST("/checkMobile", h.CheckMobile)
	r.POST("/register", h.SignUp)

	// These validate the bearer token themselves. Logout skips the refresh
	// guard; the others report a refresh from the engine call.
	r.POST("/logout", h.Logout)
	r.GET("/getInfo", h.GetInfo)
	r.POST("/ScanLogin", h.ScanLogin)
	r.POST("/PhoneBind", h.PhoneBind)
}

// RequirePermission returns a handler chain entry that authenticates and
// checks perm.
func (h *Handler) RequirePermission(perm string) gin.HandlerFunc {
	p := adminauth.NewPipeline(h.engine,
		adminauth.BearerStage(),
		adminauth.AuthenticateStage(),
		adminauth.PermissionStage(perm),
	)
	return func(c *gin.Context) { h.runGuard(c, p) }
}

// RequireAuth authenticates the bearer token and stores the result.
func (h *Handler) RequireAuth(c *gin.Context) {
	h.runGuard(c, h.guard)
}

func (h *Handler) runGuard(c *gin.Context, p *adminauth.Pipeline) {
	req, err := p.Run(h.ctx(c), c.GetHeader("Authorization"))
	if req != nil && req.Auth != nil && req.Auth.RefreshedToken != "" {
		middleware.WriteRefreshHeader(c.Writer, c.Request, req.Auth.RefreshedToken)
	}
	if err != nil {
		status, msg := classify(err)
		if status == http.StatusUnauthorized {
			msg = "failed to access [" + c.Request.URL.Path + "], unable to access system resources"
		}
		fail(c, status, msg)
		return
	}
	c.Set(authResultKey, req.Auth)
	c.Next()
}

func (h *Handler) ctx(c *gin.Context) context.Context {
	return adminauth.WithClientIP(c.Request.Context(), c.ClientIP())
}

// AuthResult returns the result stored by [Handler.RequireAuth] or
// [Handler.RequirePermission].
func AuthResult(c *gin.Context) *adminauth.AuthResult {
	v, _ := c.Get(authResultKey)
	res, _ := v.(*adminauth.AuthResult)
	return res
}
