package api

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/middleware"
	"github.com/gin-gonic/gin"
)

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"`
	UUID     string `json:"uuid"`
}

type scanBody struct {
	UUID  string `json:"uuid"`
	State string `json:"state"`
}

type registerBody struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Code            string `json:"code"`
	UUID            string `json:"uuid"`
}

type phoneBody struct {
	PhoneNum  string `json:"phoneNum"`
	PhoneCode string `json:"phoneCode"`
	// SendType 1 asks checkMobile for a bind code instead of a login code.
	SendType int `json:"sendType"`
}

const sendTypeBind = 1

func (h *Handler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		fail(c, http.StatusBadRequest, "request parameter error")
		return
	}

	res, err := h.engine.Login(h.ctx(c), adminauth.LoginRequest{
		Username:    strings.TrimSpace(body.Username),
		Password:    body.Password,
		CaptchaUUID: body.UUID,
		CaptchaCode: body.Code,
	})
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, res.Session.Token)
}

func (h *Handler) Logout(c *gin.Context) {
	token, _ := adminauth.BearerToken(c.GetHeader("Authorization"))
	res, err := h.engine.Logout(h.ctx(c), token)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, gin.H{"name": res.UserName, "id": res.UserID})
}

func (h *Handler) GetInfo(c *gin.Context) {
	token, _ := adminauth.BearerToken(c.GetHeader("Authorization"))
	info, auth, err := h.engine.GetInfo(h.ctx(c), token)
	if auth != nil && auth.RefreshedToken != "" {
		middleware.WriteRefreshHeader(c.Writer, c.Request, auth.RefreshedToken)
	}
	if err != nil {
		h.failErr(c, err)
		return
	}

	u := info.User
	ok(c, gin.H{
		"user": gin.H{
			"userId":      u.UserID,
			"userName":    u.UserName,
			"nickName":    u.NickName,
			"phonenumber": u.Phone,
			"email":       u.Email,
			"avatar":      u.Avatar,
		},
		"roles":       info.Roles,
		"permissions": info.Permissions,
	})
}

func (h *Handler) CaptchaImage(c *gin.Context) {
	captcha, err := h.engine.CaptchaIssue(h.ctx(c))
	if err != nil {
		h.failErr(c, err)
		return
	}
	captchaOff := "off"
	if captcha.Enabled {
		captchaOff = "on"
	}
	ok(c, gin.H{
		"captchaOff": captchaOff,
		"uuid":       captcha.UUID,
		"img":        captcha.Image,
	})
}

func (h *Handler) GenerateQrcode(c *gin.Context) {
	code, err := h.engine.QRGenerate(h.ctx(c), c.Query("deviceId"))
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, gin.H{
		"status":      1,
		"uuid":        code.UUID,
		"state":       code.State,
		"codeContent": code.Payload,
		"img":         code.Image,
		"expiresIn":   int(code.ExpiresIn.Seconds()),
	})
}

func (h *Handler) VerifyScan(c *gin.Context) {
	var body scanBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "request parameter error")
		return
	}
	res, err := h.engine.QRPoll(h.ctx(c), body.UUID)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, gin.H{"status": res.Status, "token": res.Token})
}

func (h *Handler) ScanLogin(c *gin.Context) {
	var body scanBody
	if err := c.ShouldBindJSON(&body); err != nil || body.UUID == "" {
		fail(c, http.StatusBadRequest, "scan failed")
		return
	}
	token, _ := adminauth.BearerToken(c.GetHeader("Authorization"))
	auth, err := h.engine.QRConfirm(h.ctx(c), body.UUID, body.State, token)
	if auth != nil && auth.RefreshedToken != "" {
		middleware.WriteRefreshHeader(c.Writer, c.Request, auth.RefreshedToken)
	}
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, 1)
}

func (h *Handler) PhoneLogin(c *gin.Context) {
	var body phoneBody
	if err := c.ShouldBindJSON(&body); err != nil || body.PhoneNum == "" {
		fail(c, http.StatusBadRequest, "request parameter error")
		return
	}
	res, err := h.engine.PhoneLogin(h.ctx(c), body.PhoneNum, body.PhoneCode)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, res.Session.Token)
}

func (h *Handler) CheckMobile(c *gin.Context) {
	var body phoneBody
	if err := c.ShouldBindJSON(&body); err != nil || body.PhoneNum == "" {
		fail(c, http.StatusBadRequest, "request parameter error")
		return
	}
	send := h.engine.SendPhoneCode
	if body.SendType == sendTypeBind {
		send = h.engine.SendBindCode
	}
	if err := send(h.ctx(c), body.PhoneNum); err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, 1)
}

func (h *Handler) SignUp(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "request parameter error")
		return
	}
	u, err := h.engine.Register(h.ctx(c), adminauth.RegisterRequest{
		Username:        body.Username,
		Password:        body.Password,
		ConfirmPassword: body.ConfirmPassword,
		CaptchaUUID:     body.UUID,
		CaptchaCode:     body.Code,
	})
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, gin.H{"userId": u.UserID, "userName": u.UserName})
}

func (h *Handler) PhoneBind(c *gin.Context) {
	var body phoneBody
	if err := c.ShouldBindJSON(&body); err != nil || body.PhoneNum == "" {
		fail(c, http.StatusBadRequest, "request parameter error")
		return
	}
	token, _ := adminauth.BearerToken(c.GetHeader("Authorization"))
	auth, err := h.engine.BindPhone(h.ctx(c), token, body.PhoneNum, body.PhoneCode)
	if auth != nil && auth.RefreshedToken != "" {
		middleware.WriteRefreshHeader(c.Writer, c.Request, auth.RefreshedToken)
	}
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, 1)
}
