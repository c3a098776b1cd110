package autherr

import "errors"

// Kind categorizes an authentication or token-lifecycle error so callers can
// react to the failure class without matching message strings.
type Kind string

const (
	IO        Kind = "io"        // credential file, directory, or certificate access
	Transport Kind = "transport" // delivering the auth URL or capturing the redirect
	Protocol  Kind = "protocol"  // the provider rejected or garbled an exchange
	Config    Kind = "config"    // unusable app key, endpoint, or redirect URL
	Clock     Kind = "clock"     // expiry arithmetic produced a nonsense instant
)

// Error is a structured error carrying the failure kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error // optional underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a new Error of the given kind.
func New(k Kind, msg string, err error) *Error { return &Error{Kind: k, Message: msg, Err: err} }

// KindOf extracts the Kind carried anywhere in err's chain.
// It returns the empty Kind when the chain carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Kind("")
}
