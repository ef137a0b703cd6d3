package sdk

import (
	"errors"
	"fmt"
)

// Error represents an API error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

// Is reports whether target carries the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new error
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// IsSuccess checks if the error code indicates success
func (e *Error) IsSuccess() bool {
	return e.Code == 0
}

// CodeOf returns the API code carried by err, 0 when it carries none
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// Common error codes
const (
	// Success
	CodeSuccess = 0

	// Common errors (1xxx)
	CodeInvalidParam    = 1001
	CodeInternalServer  = 1002
	CodeUnauthorized    = 1003
	CodeForbidden       = 1004
	CodeNotFound        = 1005
	CodeTooManyRequests = 1006
	CodeNoPermission    = 1007

	// Auth and profile errors (2xxx)
	CodeTokenInvalid    = 2001
	CodeTokenExpired    = 2002
	CodeTokenMissing    = 2003
	CodeTokenMismatch   = 2004
	CodeLoginFailed     = 2005
	CodeProfileNotFound = 2006
	CodeEmailExists     = 2007
	CodePasswordWrong   = 2008

	// Conversation errors (3xxx)
	CodeConvNotFound     = 3001
	CodeSelfConversation = 3002
	CodeNotParticipant   = 3003
	CodeConvCreateFailed = 3004
	CodeConvTouchFailed  = 3005

	// Message errors (4xxx)
	CodeMessageNotFound = 4001
	CodeEmptyContent    = 4002
	CodeSendFailed      = 4005
	CodePullFailed      = 4006
	CodeMarkReadFailed  = 4007

	// Realtime errors (5xxx)
	CodeConnOverLimit   = 5001
	CodeConnClosed      = 5002
	CodeInvalidProtocol = 5003
	CodePushFailed      = 5004
	CodeInvalidTopic    = 5005
	CodeInvalidFilter   = 5006
	CodeInvalidEvent    = 5007
)

// Predefined errors
var (
	ErrInvalidParam    = NewError(CodeInvalidParam, "invalid parameter")
	ErrInternalServer  = NewError(CodeInternalServer, "internal server error")
	ErrUnauthorized    = NewError(CodeUnauthorized, "unauthorized")
	ErrNoPermission    = NewError(CodeNoPermission, "no permission to access this resource")
	ErrTooManyRequests = NewError(CodeTooManyRequests, "too many requests")

	ErrTokenInvalid    = NewError(CodeTokenInvalid, "token invalid")
	ErrTokenMissing    = NewError(CodeTokenMissing, "token missing")
	ErrProfileNotFound = NewError(CodeProfileNotFound, "profile not found")
	ErrEmailExists     = NewError(CodeEmailExists, "email already registered")
	ErrPasswordWrong   = NewError(CodePasswordWrong, "password wrong")

	ErrConvNotFound     = NewError(CodeConvNotFound, "conversation not found")
	ErrSelfConversation = NewError(CodeSelfConversation, "cannot start a conversation with yourself")
	ErrEmptyContent     = NewError(CodeEmptyContent, "message content is empty")
)
