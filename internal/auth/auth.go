package auth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
)

var ErrAuthentication = errors.New("authentication failed")

func authError(reason string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrAuthentication, reason)
	}

	return fmt.Errorf("%w: %s: %w", ErrAuthentication, reason, err)
}

// Consent shows the provider's consent page to the user. The flow waits for
// the browser to come back on the loopback redirect after Open returns.
type Consent interface {
	Open(authURL string) error
}

type ConsentFunc func(authURL string) error

func (f ConsentFunc) Open(authURL string) error {
	return f(authURL)
}

// PrintConsent writes the URL for the user to open by hand.
var PrintConsent ConsentFunc = func(authURL string) error {
	if _, err := url.Parse(authURL); err != nil {
		return err
	}

	_, err := fmt.Fprintf(os.Stderr, "Visit the URL for the auth dialog:\n\n%s\n\nAuthentication will complete after you log on via browser...\n", authURL)
	return err
}

// SecretSelector asks the user for a client secret file when none has been
// imported yet. It returns false when the user declines.
type SecretSelector func() (string, bool)
