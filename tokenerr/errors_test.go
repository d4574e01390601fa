package tokenerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Error(t *testing.T) {
	t.Run("specific kinds match their family", func(t *testing.T) {
		err := New(ErrExpired, CodeTokenExpired, "token expired at 10:00", nil)

		assert.True(t, errors.Is(err, ErrExpired))
		assert.True(t, errors.Is(err, ErrUnableToValidate))
		assert.False(t, errors.Is(err, ErrKeyNotFound))
	})

	t.Run("families match only themselves", func(t *testing.T) {
		err := New(ErrParse, CodeMalformed, "bad token", nil)

		assert.True(t, errors.Is(err, ErrParse))
		assert.False(t, errors.Is(err, ErrFormat))
	})

	t.Run("it unwraps to the details", func(t *testing.T) {
		cause := errors.New("boom")
		err := fmt.Errorf("outer: %w", New(ErrDecryptionFailed, CodeDecryptionFailed, "decrypt", cause))

		assert.True(t, errors.Is(err, cause))
		assert.True(t, errors.Is(err, ErrDecryptionFailed))
		assert.Equal(t, CodeDecryptionFailed, CodeOf(err))
		assert.Equal(t, "outer: decrypt: boom", err.Error())
	})

	t.Run("it falls back to the kind text", func(t *testing.T) {
		err := &Error{Kind: ErrInvalidIssuer}
		assert.Equal(t, "invalid issuer", err.Error())
	})

	t.Run("code of a foreign error is empty", func(t *testing.T) {
		assert.Equal(t, "", CodeOf(errors.New("plain")))
	})

	t.Run("family of every key-not-found kind", func(t *testing.T) {
		for _, kind := range []error{ErrSignatureKeyNotFound, ErrNoSigningKeys, ErrDecryptionKeyNotFound} {
			assert.Equal(t, ErrKeyNotFound, Family(kind))
		}
		assert.Equal(t, ErrInvalidSignature, Family(ErrInvalidAlgorithm))
		assert.Equal(t, ErrParse, Family(ErrParse))
	})
}
