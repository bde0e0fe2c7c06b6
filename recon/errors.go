package recon

import "errors"

// Engine operation failures. Handlers map these onto HTTP status codes;
// anything else bubbling out of an operation is an internal store error.
var (
	ErrCodeNotFound            = errors.New("recon: verification code not found")
	ErrCodeExpired             = errors.New("recon: verification code expired")
	ErrUserNotLinked           = errors.New("recon: no user linked to this username")
	ErrApplicationNotFound     = errors.New("recon: application not found")
	ErrFactionNotFound         = errors.New("recon: faction not found")
	ErrForbidden               = errors.New("recon: requester is not a member of this faction")
	ErrInsufficientPermissions = errors.New("recon: requester role cannot manage applications")
	ErrAlreadyMember           = errors.New("recon: user already belongs to a faction")
	ErrApplicationPending      = errors.New("recon: user already has a pending application")
	ErrInvalidAction           = errors.New("recon: invalid action")
)
