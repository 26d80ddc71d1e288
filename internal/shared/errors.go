package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Invitation validation errors, ordered by specificity
	ErrInviteNotFound = fmt.Errorf("invitation not found")
	ErrInviteDisabled = fmt.Errorf("invitation disabled")
	ErrInviteExpired  = fmt.Errorf("invitation expired")
	ErrInviteMaxUses  = fmt.Errorf("invitation has no uses remaining")

	// PIN handshake errors
	ErrPinExpired  = fmt.Errorf("pin expired")
	ErrPinNotFound = fmt.Errorf("pin not found")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrServerNotFound     = fmt.Errorf("media server not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
