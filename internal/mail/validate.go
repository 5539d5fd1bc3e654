package mail

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidAddress    = errors.New("mail: invalid email address")
	ErrDisposableAddress = errors.New("mail: disposable email domains are not supported")
)

var addressPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,63}$`)

// Disposable providers are rejected outright to keep delivery logs clean
// of throwaway inboxes.
var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"10minutemail.com":  {},
	"guerrillamail.com": {},
	"temp-mail.org":     {},
	"yopmail.com":       {},
	"trashmail.com":     {},
	"sharklasers.com":   {},
	"burnermail.io":     {},
}

// ValidateRecipient checks the address shape and rejects disposable
// domains. It returns the trimmed address on success.
func ValidateRecipient(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if !addressPattern.MatchString(trimmed) {
		return "", ErrInvalidAddress
	}
	at := strings.LastIndex(trimmed, "@")
	domain := strings.ToLower(trimmed[at+1:])
	if _, blocked := disposableDomains[domain]; blocked {
		return "", ErrDisposableAddress
	}
	return trimmed, nil
}
