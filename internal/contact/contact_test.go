package contact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinkPrecedence(t *testing.T) {
	p, err := ParseLinkPrecedence("primary")
	require.NoError(t, err)
	assert.Equal(t, Primary, p)

	p, err = ParseLinkPrecedence("secondary")
	require.NoError(t, err)
	assert.Equal(t, Secondary, p)

	_, err = ParseLinkPrecedence("PRIMARY")
	assert.Error(t, err)
}

func TestObservationClean(t *testing.T) {
	tests := []struct {
		name string
		in   Observation
		want Observation
	}{
		{"both set", Observation{"a@x.com", "123"}, Observation{"a@x.com", "123"}},
		{"blank email", Observation{"   ", "123"}, Observation{"", "123"}},
		{"blank phone", Observation{"a@x.com", "\t"}, Observation{"a@x.com", ""}},
		{"kept verbatim", Observation{" a@x.com", "123 "}, Observation{" a@x.com", "123 "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Clean())
		})
	}
}

func TestObservationValidate(t *testing.T) {
	assert.ErrorIs(t, Observation{}.Validate(), ErrEmptyObservation)
	assert.ErrorIs(t, Observation{Email: " ", PhoneNumber: "  "}.Validate(), ErrEmptyObservation)
	assert.NoError(t, Observation{Email: "a@x.com"}.Validate())
	assert.NoError(t, Observation{PhoneNumber: "123"}.Validate())
}

func TestObservationLockKeys(t *testing.T) {
	keys := Observation{Email: "A@X.com", PhoneNumber: "123"}.LockKeys()
	assert.Equal(t, []string{"email:a@x.com", "phone:123"}, keys)

	assert.Equal(t, []string{"phone:123"}, Observation{PhoneNumber: "123"}.LockKeys())
	assert.Empty(t, Observation{}.LockKeys())

	// Composed and decomposed forms share a key.
	composed := Observation{Email: "caf\u00e9@x.com"}.LockKeys()
	decomposed := Observation{Email: "cafe\u0301@x.com"}.LockKeys()
	assert.Equal(t, composed, decomposed)
}

func TestIdentityLockKey(t *testing.T) {
	assert.Equal(t, "contact:42", IdentityLockKey(42))
	assert.NotContains(t, Observation{Email: "42", PhoneNumber: "42"}.LockKeys(), IdentityLockKey(42))
}

func TestHasPair(t *testing.T) {
	c := Contact{Email: "a@x.com"}
	assert.True(t, c.HasPair(Observation{Email: "a@x.com"}))
	assert.False(t, c.HasPair(Observation{Email: "a@x.com", PhoneNumber: "1"}))
	assert.False(t, c.HasPair(Observation{PhoneNumber: "1"}))
}

func TestOlder(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Contact{ID: 5, CreatedAt: t0}
	b := Contact{ID: 2, CreatedAt: t0.Add(time.Second)}
	assert.True(t, Older(a, b))
	assert.False(t, Older(b, a))

	// Equal timestamps fall back to ID.
	c := Contact{ID: 1, CreatedAt: t0}
	assert.True(t, Older(c, a))
	assert.False(t, Older(a, c))
}

func TestNewContacts(t *testing.T) {
	o := Observation{Email: "a@x.com", PhoneNumber: "1"}

	p := NewPrimary(o)
	assert.True(t, p.IsPrimary())
	assert.Zero(t, p.LinkedID)
	assert.True(t, p.HasPair(o))

	s := NewSecondary(o, 7)
	assert.False(t, s.IsPrimary())
	assert.Equal(t, int64(7), s.LinkedID)
	assert.True(t, s.HasPair(o))
}
