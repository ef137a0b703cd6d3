package errcode

import "fmt"

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Is reports whether target carries the same code, so wrapped copies match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam    = New(1001, "invalid parameter")
	ErrInternalServer  = New(1002, "internal server error")
	ErrUnauthorized    = New(1003, "unauthorized")
	ErrForbidden       = New(1004, "forbidden")
	ErrNotFound        = New(1005, "not found")
	ErrTooManyRequests = New(1006, "too many requests")
	ErrNoPermission    = New(1007, "no permission to access this resource")

	// Auth and profile errors (2xxx)
	ErrTokenInvalid    = New(2001, "token invalid")
	ErrTokenExpired    = New(2002, "token expired")
	ErrTokenMissing    = New(2003, "token missing")
	ErrTokenMismatch   = New(2004, "token user mismatch")
	ErrLoginFailed     = New(2005, "login failed")
	ErrProfileNotFound = New(2006, "profile not found")
	ErrEmailExists     = New(2007, "email already registered")
	ErrPasswordWrong   = New(2008, "password wrong")

	// Conversation errors (3xxx)
	ErrConvNotFound     = New(3001, "conversation not found")
	ErrSelfConversation = New(3002, "cannot start a conversation with yourself")
	ErrNotParticipant   = New(3003, "not a conversation participant")
	ErrConvCreateFailed = New(3004, "conversation create failed")
	ErrConvTouchFailed  = New(3005, "conversation touch failed")

	// Message errors (4xxx)
	ErrMessageNotFound = New(4001, "message not found")
	ErrEmptyContent    = New(4002, "message content is empty")
	ErrSendFailed      = New(4005, "message send failed")
	ErrPullFailed      = New(4006, "message pull failed")
	ErrMarkReadFailed  = New(4007, "mark read failed")

	// Realtime errors (5xxx)
	ErrConnOverLimit   = New(5001, "connection over max limit")
	ErrConnClosed      = New(5002, "connection closed")
	ErrInvalidProtocol = New(5003, "invalid protocol")
	ErrPushFailed      = New(5004, "push message failed")
	ErrInvalidTopic    = New(5005, "invalid topic")
	ErrInvalidFilter   = New(5006, "invalid filter")
	ErrInvalidEvent    = New(5007, "invalid event kind")
)
