package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultPlatformDomain is appended to short application names.
const DefaultPlatformDomain = "voximplant.com"

var folder = cases.Fold()

// FoldName returns the case-insensitive identity of a name.
// Names are NFC-normalised before folding so that composed and decomposed
// spellings of the same name collide.
func FoldName(name string) string {
	return folder.String(norm.NFC.String(name))
}

// CanonicalApplicationName qualifies a short application label with the
// account and platform domain. Names that already contain a dot are
// returned unchanged.
//
//	CanonicalApplicationName("ivr", "acme", "voximplant.com") // "ivr.acme.voximplant.com"
func CanonicalApplicationName(name, accountName, platformDomain string) string {
	if name == "" || strings.Contains(name, ".") {
		return name
	}
	if platformDomain == "" {
		platformDomain = DefaultPlatformDomain
	}
	return name + "." + accountName + "." + platformDomain
}

// ShortApplicationName strips the account/domain suffix from a canonical
// name. A name without a dot is returned unchanged.
func ShortApplicationName(name string) string {
	short, _, _ := strings.Cut(name, ".")
	return short
}
