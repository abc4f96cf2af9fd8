package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Study lifecycle business-rule violations. These are expected outcomes, never faults.
const (
	CodeStudyNotFound             Code = "STUDY_NOT_FOUND"
	CodeRequestNotFound           Code = "REQUEST_NOT_FOUND"
	CodeStudyNotRecruiting        Code = "STUDY_NOT_RECRUITING"
	CodeStudyFull                 Code = "STUDY_FULL"
	CodeStudyFinished             Code = "STUDY_ALREADY_FINISHED"
	CodeNotStudyLeader            Code = "NOT_STUDY_LEADER"
	CodeAlreadyMember             Code = "ALREADY_MEMBER"
	CodeAlreadyRequested          Code = "ALREADY_REQUESTED"
	CodeNotMember                 Code = "NOT_MEMBER"
	CodeLeaderCannotWithdraw      Code = "LEADER_CANNOT_WITHDRAW"
	CodeCannotKickSelf            Code = "CANNOT_KICK_SELF"
	CodeRequestAlreadyProcessed   Code = "REQUEST_ALREADY_PROCESSED"
	CodeNotRequestOwner           Code = "NOT_REQUEST_OWNER"
	CodeNewLeaderMustBeMember     Code = "NEW_LEADER_MUST_BE_MEMBER"
	CodeCannotDelegateToWithdrawn Code = "CANNOT_DELEGATE_TO_WITHDRAWN"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:     http.StatusUnauthorized,
		Retryable:      false,
		PublicMessage:  "authentication required",
		DetailsAllowed: false,
	},
	CodeForbidden: {
		HTTPStatus:     http.StatusForbidden,
		Retryable:      false,
		PublicMessage:  "access denied",
		DetailsAllowed: false,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeConflict: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "conflict detected",
		DetailsAllowed: false,
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeRateLimit: {
		HTTPStatus:     http.StatusTooManyRequests,
		Retryable:      false,
		PublicMessage:  "rate limit exceeded",
		DetailsAllowed: false,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},

	CodeStudyNotFound:             domain(http.StatusNotFound, "study not found"),
	CodeRequestNotFound:           domain(http.StatusNotFound, "study request not found"),
	CodeStudyNotRecruiting:        domain(http.StatusBadRequest, "study is not recruiting"),
	CodeStudyFull:                 domain(http.StatusConflict, "study is full"),
	CodeStudyFinished:             domain(http.StatusConflict, "study already finished"),
	CodeNotStudyLeader:            domain(http.StatusForbidden, "only the study leader may do this"),
	CodeAlreadyMember:             domain(http.StatusConflict, "already a member of this study"),
	CodeAlreadyRequested:          domain(http.StatusConflict, "a pending request already exists"),
	CodeNotMember:                 domain(http.StatusBadRequest, "not a member of this study"),
	CodeLeaderCannotWithdraw:      domain(http.StatusBadRequest, "the leader cannot withdraw"),
	CodeCannotKickSelf:            domain(http.StatusBadRequest, "the leader cannot be removed"),
	CodeRequestAlreadyProcessed:   domain(http.StatusConflict, "request already processed"),
	CodeNotRequestOwner:           domain(http.StatusForbidden, "only the requester may do this"),
	CodeNewLeaderMustBeMember:     domain(http.StatusBadRequest, "new leader must be a member"),
	CodeCannotDelegateToWithdrawn: domain(http.StatusBadRequest, "cannot delegate to a withdrawn member"),
}

func domain(status int, msg string) Metadata {
	return Metadata{
		HTTPStatus:     status,
		Retryable:      false,
		PublicMessage:  msg,
		DetailsAllowed: true,
	}
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Public reports whether the code's message may be shown to clients as-is.
func (m Metadata) Public() bool {
	return m.HTTPStatus < http.StatusInternalServerError
}
