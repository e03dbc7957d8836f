package entity

import "errors"

type ValidationReason string

const (
	ReasonInactive    ValidationReason = "inactive"
	ReasonExpired     ValidationReason = "expired"
	ReasonAlreadyUsed ValidationReason = "already_used"
)

// ValidationError is returned for a link that exists but cannot be used.
type ValidationError struct {
	Reason ValidationReason
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonInactive:
		return "link is inactive"
	case ReasonExpired:
		return "link has expired"
	case ReasonAlreadyUsed:
		return "link has already been used"
	}
	return "link is invalid"
}

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

var (
	ErrLinkInactive = &ValidationError{Reason: ReasonInactive}
	ErrLinkExpired  = &ValidationError{Reason: ReasonExpired}
	ErrLinkUsed     = &ValidationError{Reason: ReasonAlreadyUsed}

	ErrPermissionDenied = errors.New("user is already logged in as another user")
	ErrUserInactive     = errors.New("user account is inactive")
)
