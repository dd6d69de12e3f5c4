package httputil

// Machine-readable codes for failures that are decided in the transport
// layer rather than in a service.
const (
	CodeInvalidRequestBody = "invalid_request_body"
	CodeInvalidAuthHeader  = "invalid_auth_header"
	CodeMissingAuth        = "missing_auth"
	CodeTokenExpired       = "token_expired"
	CodeInvalidToken       = "invalid_token"
	CodeInvalidTokenUserID = "invalid_token_user_id"
	CodeTooManyRequests    = "too_many_requests"
	CodeCooldownActive     = "cooldown_active"
	CodeStreamUnsupported  = "stream_unsupported"
	CodeInvalidOAuthState  = "invalid_oauth_state"
)
