package types

import (
	"errors"
	"strings"
)

// ErrInvalidJID is returned when an address cannot be parsed.
var ErrInvalidJID = errors.New("invalid jid")

// JID is a parsed address of the form [local@]domain[/resource].
//
// Local and Domain are lower-cased on parse so that bare comparison is
// case-insensitive; Resource is kept verbatim.
type JID struct {
	Local    string
	Domain   string
	Resource string
}

// ParseJID splits s into its parts.
func ParseJID(s string) (JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return JID{}, ErrInvalidJID
	}
	var j JID
	if i := strings.IndexByte(s, '/'); i >= 0 {
		j.Resource = s[i+1:]
		s = s[:i]
		if j.Resource == "" {
			return JID{}, ErrInvalidJID
		}
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		j.Local = strings.ToLower(s[:i])
		s = s[i+1:]
		if j.Local == "" {
			return JID{}, ErrInvalidJID
		}
	}
	if s == "" || strings.ContainsAny(s, "@/") {
		return JID{}, ErrInvalidJID
	}
	j.Domain = strings.ToLower(s)
	return j, nil
}

// MustParseJID is ParseJID for constants and tests.
func MustParseJID(s string) JID {
	j, err := ParseJID(s)
	if err != nil {
		panic(err)
	}
	return j
}

// Bare returns local@domain without the resource.
func (j JID) Bare() string {
	if j.Local == "" {
		return j.Domain
	}
	return j.Local + "@" + j.Domain
}

// BareJID returns a copy of j with the resource stripped.
func (j JID) BareJID() JID { return JID{Local: j.Local, Domain: j.Domain} }

// IsZero reports whether j is unset.
func (j JID) IsZero() bool { return j.Domain == "" }

// BareEqual compares two addresses ignoring the resource.
func (j JID) BareEqual(other JID) bool {
	return !j.IsZero() && j.Local == other.Local && j.Domain == other.Domain
}

// String returns the full address.
func (j JID) String() string {
	if j.Resource == "" {
		return j.Bare()
	}
	return j.Bare() + "/" + j.Resource
}
