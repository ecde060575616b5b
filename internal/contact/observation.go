package contact

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyObservation is returned when neither an email nor a phone number
// was supplied.
var ErrEmptyObservation = errors.New("observation needs an email or a phone number")

// Observation is an incoming (email, phone number) pair to reconcile.
type Observation struct {
	Email       string `json:"email,omitempty" yaml:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty" yaml:"phoneNumber,omitempty"`
}

// Clean returns o with whitespace-only fields cleared to absent.
// Non-blank values are kept verbatim: matching is exact.
func (o Observation) Clean() Observation {
	if strings.TrimSpace(o.Email) == "" {
		o.Email = ""
	}
	if strings.TrimSpace(o.PhoneNumber) == "" {
		o.PhoneNumber = ""
	}
	return o
}

// IsEmpty reports whether both fields are blank.
func (o Observation) IsEmpty() bool {
	c := o.Clean()
	return c.Email == "" && c.PhoneNumber == ""
}

// Validate returns ErrEmptyObservation when o carries nothing to match on.
func (o Observation) Validate() error {
	if o.IsEmpty() {
		return ErrEmptyObservation
	}
	return nil
}

// LockKeys returns the advisory lock keys guarding reconciliation of o,
// sorted so that concurrent holders always acquire them in the same order.
//
// Keys are NFC-normalized and lower-cased, which may put two observations that
// do not match exactly under the same lock. That only serializes them.
func (o Observation) LockKeys() []string {
	c := o.Clean()
	var keys []string
	if c.Email != "" {
		keys = append(keys, "email:"+lockValue(c.Email))
	}
	if c.PhoneNumber != "" {
		keys = append(keys, "phone:"+lockValue(c.PhoneNumber))
	}
	sort.Strings(keys)
	return keys
}

// IdentityLockKey returns the lock key guarding the identity whose primary
// contact is primaryID. It never collides with an observation lock key.
func IdentityLockKey(primaryID int64) string {
	return "contact:" + strconv.FormatInt(primaryID, 10)
}

func lockValue(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
