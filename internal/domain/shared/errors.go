package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code, so wrapped
// domain errors can be matched with errors.Is against the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidInput    = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState    = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInvalidAmount   = NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	ErrInvalidGrouping = NewDomainError("INVALID_GROUPING", "Unsupported grouping dimension")
	ErrInvalidWindow   = NewDomainError("INVALID_WINDOW", "Date window start is after its end")
	ErrInvalidOptions  = NewDomainError("INVALID_OPTIONS", "Invalid analytics options")
)
