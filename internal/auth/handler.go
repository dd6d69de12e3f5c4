package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/cicero/internal/apperr"
	"github.com/redmonkez12/cicero/internal/httputil"
	"github.com/redmonkez12/cicero/internal/logging"
	"github.com/redmonkez12/cicero/internal/ratelimit"
	"github.com/redmonkez12/cicero/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service         *Service
	rateLimiter     *ratelimit.Limiter
	isProduction    bool
	sessionDuration time.Duration
	afterLoginURL   string
}

// NewHandler wires the auth endpoints. afterLoginURL is where the browser
// lands after a Google sign-in.
func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, isProduction bool, sessionDuration time.Duration, afterLoginURL string) *Handler {
	return &Handler{
		service:         service,
		rateLimiter:     rateLimiter,
		isProduction:    isProduction,
		sessionDuration: sessionDuration,
		afterLoginURL:   afterLoginURL,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	ProfilePic   string    `json:"profile_pic,omitempty"`
	LoginMethods []string  `json:"login_methods"`
}

// SessionResponse is returned after a successful sign-in. The token is
// omitted when it was set as a cookie.
type SessionResponse struct {
	Message     string       `json:"message"`
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token,omitempty"`
	TokenType   string       `json:"token_type,omitempty"`
	ExpiresIn   int64        `json:"expires_in,omitempty"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ProfilePic:   u.ProfilePic,
		LoginMethods: user.LoginMethods(u.Account),
	}
}

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.ipLimited(r, ip, "register") {
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	h.recordIP(r, ip, "register")

	sess, err := h.service.Register(r.Context(), req)
	if err != nil {
		httputil.RespondApology(w, r, err)
		return
	}

	logger.Info("user registered", "user_id", sess.User.ID)
	h.respondSession(w, r, sess, "registered successfully", http.StatusCreated)
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.ipLimited(r, ip, "login") {
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	h.recordIP(r, ip, "login")

	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondApology(w, r, err)
		return
	}

	logger.Info("user logged in", "user_id", sess.User.ID)
	h.respondSession(w, r, sess, "logged in successfully", http.StatusOK)
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, h.isProduction)
	httputil.RespondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondApology(w, r, apperr.New(apperr.KindAuth, ""))
		return
	}

	u, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		httputil.RespondApology(w, r, err)
		return
	}

	httputil.RespondJSON(w, toUserResponse(u), http.StatusOK)
}

// GoogleLogin handles GET /auth/google/login by redirecting to Google.
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.service.GoogleEnabled() {
		httputil.RespondApology(w, r, apperr.New(apperr.KindNotFound, "google sign-in is not configured"))
		return
	}

	state, err := randomState()
	if err != nil {
		httputil.RespondApology(w, r, err)
		return
	}

	setOAuthStateCookie(w, state, h.isProduction)
	http.Redirect(w, r, h.service.GoogleAuthURL(state), http.StatusFound)
}

// GoogleCallback handles GET /auth/google/callback
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())
	query := r.URL.Query()

	stateCookie, err := r.Cookie(oauthStateCookieName)
	clearOAuthStateCookie(w, h.isProduction)
	if err != nil || stateCookie.Value == "" ||
		subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(query.Get("state"))) != 1 {
		logger.Warn("google callback with missing or mismatched state")
		httputil.RespondErrorWithCode(w, "invalid oauth state", httputil.CodeInvalidOAuthState, http.StatusBadRequest)
		return
	}

	if reason := query.Get("error"); reason != "" {
		httputil.RespondApology(w, r, apperr.New(apperr.KindAuth, "google sign-in was not completed: "+reason))
		return
	}
	code := query.Get("code")
	if code == "" {
		httputil.RespondApology(w, r, apperr.New(apperr.KindValidation, "missing authorization code"))
		return
	}

	sess, err := h.service.LoginWithGoogle(r.Context(), code)
	if err != nil {
		httputil.RespondApology(w, r, err)
		return
	}

	logger.Info("user logged in with google", "user_id", sess.User.ID)
	SetSessionCookie(w, sess.Token, h.isProduction, h.sessionDuration)
	http.Redirect(w, r, h.afterLoginURL, http.StatusFound)
}

// ForgotPassword handles POST /auth/forgot-password. The response is the
// same whether or not the email belongs to an account.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	ip := getClientIP(r)
	if h.ipLimited(r, ip, "forgot-password") {
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	if h.rateLimiter != nil {
		onCooldown, err := h.rateLimiter.CheckEmailCooldownWithPurpose(r.Context(), req.Email, "password-reset")
		if err != nil {
			logger.Error("failed to check email cooldown", "error", err.Error())
		} else if onCooldown {
			httputil.RespondErrorWithCode(w, "please wait before requesting another reset", httputil.CodeCooldownActive, http.StatusTooManyRequests)
			return
		}
	}

	h.recordIP(r, ip, "forgot-password")
	if h.rateLimiter != nil {
		if err := h.rateLimiter.SetEmailCooldownWithPurpose(r.Context(), req.Email, "password-reset"); err != nil {
			logger.Error("failed to set email cooldown", "error", err.Error())
		}
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		httputil.RespondApology(w, r, err)
		return
	}

	httputil.RespondJSON(w, map[string]string{
		"message": "If an account exists with that email, a password reset link has been sent.",
	}, http.StatusOK)
}

// ResetPassword handles POST /auth/reset-password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		httputil.RespondApology(w, r, err)
		return
	}

	httputil.RespondJSON(w, map[string]string{
		"message": "Password reset successfully. You can now login with your new password.",
	}, http.StatusOK)
}

func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, sess *Session, message string, status int) {
	resp := SessionResponse{Message: message, User: toUserResponse(sess.User)}
	if ShouldUseCookies(r) {
		SetSessionCookie(w, sess.Token, h.isProduction, h.sessionDuration)
	} else {
		resp.AccessToken = sess.Token
		resp.TokenType = sess.TokenType
		resp.ExpiresIn = sess.ExpiresIn
	}
	httputil.RespondJSON(w, resp, status)
}

// ipLimited reports whether ip has exhausted its window for purpose.
// Limiter failures are logged and let the request through.
func (h *Handler) ipLimited(r *http.Request, ip, purpose string) bool {
	if h.rateLimiter == nil {
		return false
	}
	logger := logging.GetLoggerFromContext(r.Context())
	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
	}
	return exceeded
}

func (h *Handler) recordIP(r *http.Request, ip, purpose string) {
	if h.rateLimiter == nil {
		return
	}
	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to record IP request", "error", err.Error())
	}
}

// getClientIP returns the host part of RemoteAddr. The router's RealIP
// middleware has already applied X-Forwarded-For and X-Real-IP.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
