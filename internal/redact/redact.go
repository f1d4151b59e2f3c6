// Package redact turns secrets and personal data into display-safe strings.
// Nothing produced here may be written to an enrollment sink.
package redact

import (
	"strings"

	"github.com/phijaro/octo-oauth-demo/internal/domain"
)

// NamePlaceholder replaces every user name.
const NamePlaceholder = "John Doe"

const (
	maskChar   = "*"
	tokenEdge  = 4
	emailMask  = 8
	emptyEmail = "********@********"
)

// Token keeps the first and last four characters of t and masks the rest,
// preserving length. Tokens shorter than eight characters are masked entirely.
func Token(t string) string {
	runes := []rune(t)
	if len(runes) < 2*tokenEdge {
		return strings.Repeat(maskChar, len(runes))
	}
	return string(runes[:tokenEdge]) +
		strings.Repeat(maskChar, len(runes)-2*tokenEdge) +
		string(runes[len(runes)-tokenEdge:])
}

// Email returns a fixed-width mask that keeps only the first and last character
// of e. The '@' in the output does not track the real one.
func Email(e string) string {
	runes := []rune(e)
	if len(runes) == 0 {
		return emptyEmail
	}
	mask := strings.Repeat(maskChar, emailMask)
	return string(runes[0]) + mask + "@" + mask + string(runes[len(runes)-1])
}

// Name ignores its input and returns NamePlaceholder.
func Name(string) string {
	return NamePlaceholder
}

// View projects an enrollment for logs and pages.
func View(e domain.Enrollment) domain.RedactedView {
	return domain.RedactedView{
		Name:         Name(e.Name),
		Email:        Email(e.Email),
		RefreshToken: Token(e.RefreshToken),
	}
}
