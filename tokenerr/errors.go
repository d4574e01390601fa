// Package tokenerr defines the error kinds produced while reading, creating and
// validating tokens.
//
// Every error returned by this module that describes a token problem can be
// matched with errors.Is against one of the sentinel kinds below. Specific kinds
// also match the family they belong to, so a caller interested only in "the token
// could not be validated" can test for ErrUnableToValidate and still catch an
// expired token:
//
//	if errors.Is(result.Err, tokenerr.ErrUnableToValidate) {
//	    // lifetime, audience, issuer, type, replay or signing key checks failed
//	}
package tokenerr

import (
	"errors"
	"fmt"
)

// Families.
var (
	// ErrParse is returned when the compact serialization is malformed: wrong
	// segment count, a segment that is not JSON, or an empty JWE ciphertext.
	ErrParse = errors.New("malformed token")

	// ErrFormat is returned for Base64Url decode failures and values that do not
	// have the expected encoding, such as a non-numeric date claim.
	ErrFormat = errors.New("invalid format")

	// ErrKeyNotFound is returned when no usable signing or decryption key exists.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidSignature is returned when the signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrDecryptionFailed is returned when no key decrypts a JWE.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrDecompressionFailed is returned when a decrypted JWE payload cannot be inflated.
	ErrDecompressionFailed = errors.New("decompression failed")

	// ErrKeyWrap is returned when unwrapping the content encryption key fails for every key.
	ErrKeyWrap = errors.New("key wrap failed")

	// ErrUnableToValidate is returned when the token signature is acceptable but
	// one of its claims (lifetime, audience, issuer, type, replay, signing key) is not.
	ErrUnableToValidate = errors.New("unable to validate token")

	// ErrArgument is returned for missing or unacceptable inputs.
	ErrArgument = errors.New("invalid argument")

	// ErrEncryptionFailed is returned when a token cannot be encrypted.
	ErrEncryptionFailed = errors.New("encryption failed")
)

// Specific kinds. Each one belongs to exactly one family.
var (
	ErrSignatureKeyNotFound  = errors.New("signature key not found")
	ErrNoSigningKeys         = errors.New("no signing keys available")
	ErrDecryptionKeyNotFound = errors.New("decryption key not found")

	ErrInvalidAlgorithm = errors.New("invalid algorithm")

	ErrExpired           = errors.New("token expired")
	ErrNotYetValid       = errors.New("token not yet valid")
	ErrNoExpiration      = errors.New("token has no expiration")
	ErrInvalidLifetime   = errors.New("invalid token lifetime")
	ErrInvalidAudience   = errors.New("invalid audience")
	ErrInvalidIssuer     = errors.New("invalid issuer")
	ErrInvalidType       = errors.New("invalid token type")
	ErrReplayDetected    = errors.New("token replay detected")
	ErrReplayAddFailed   = errors.New("token could not be added to the replay cache")
	ErrInvalidSigningKey = errors.New("invalid signing key")
)

var families = map[error]error{
	ErrSignatureKeyNotFound:  ErrKeyNotFound,
	ErrNoSigningKeys:         ErrKeyNotFound,
	ErrDecryptionKeyNotFound: ErrKeyNotFound,

	ErrInvalidAlgorithm: ErrInvalidSignature,

	ErrExpired:           ErrUnableToValidate,
	ErrNotYetValid:       ErrUnableToValidate,
	ErrNoExpiration:      ErrUnableToValidate,
	ErrInvalidLifetime:   ErrUnableToValidate,
	ErrInvalidAudience:   ErrUnableToValidate,
	ErrInvalidIssuer:     ErrUnableToValidate,
	ErrInvalidType:       ErrUnableToValidate,
	ErrReplayDetected:    ErrUnableToValidate,
	ErrReplayAddFailed:   ErrUnableToValidate,
	ErrInvalidSigningKey: ErrUnableToValidate,
}

// Family returns the family a kind belongs to. Families map to themselves.
func Family(kind error) error {
	if f, ok := families[kind]; ok {
		return f
	}
	return kind
}

// Error carries a kind, a stable machine-readable code and the underlying cause.
type Error struct {
	// Kind is one of the sentinel errors of this package.
	Kind error

	// Code is a machine-readable error code (e.g. "token_expired").
	Code string

	// Message is a human-readable error message.
	Message string

	// Details contains the underlying error, if any.
	Details error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Details != nil {
		return msg + ": " + e.Details.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Details
}

// Is reports whether target is the kind of this error or its family.
func (e *Error) Is(target error) bool {
	if e.Kind == nil {
		return false
	}
	return target == e.Kind || target == Family(e.Kind)
}

// New builds an *Error of the given kind.
func New(kind error, code, message string, details error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Newf builds an *Error of the given kind with a formatted message and no details.
func Newf(kind error, code, format string, args ...any) *Error {
	return New(kind, code, fmt.Sprintf(format, args...), nil)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var tokenErr *Error
	if errors.As(err, &tokenErr) {
		return tokenErr.Code
	}
	return ""
}

// Error codes.
const (
	CodeMalformed               = "token_malformed"
	CodeTooLarge                = "token_too_large"
	CodeEmptyCiphertext         = "empty_ciphertext"
	CodeInvalidBase64           = "invalid_base64url"
	CodeInvalidDate             = "invalid_date"
	CodeInvalidSignature        = "invalid_signature"
	CodeUnsignedToken           = "token_unsigned"
	CodeInvalidAlgorithm        = "invalid_algorithm"
	CodeSignatureKeyNotFound    = "signature_key_not_found"
	CodeNoSigningKeys           = "no_signing_keys"
	CodeKidMatchedParameters    = "kid_matched_parameters_key"
	CodeKidMatchedConfiguration = "kid_matched_configuration_key"
	CodeDecryptionFailed        = "decryption_failed"
	CodeDecryptionKeyNotFound   = "decryption_key_not_found"
	CodeDecompressionFailed     = "decompression_failed"
	CodeKeyWrapFailed           = "key_wrap_failed"
	CodeEncryptionFailed        = "encryption_failed"
	CodeTokenExpired            = "token_expired"
	CodeTokenNotYetValid        = "token_not_yet_valid"
	CodeNoExpiration            = "token_no_expiration"
	CodeInvalidLifetime         = "invalid_lifetime"
	CodeInvalidAudience         = "invalid_audience"
	CodeInvalidIssuer           = "invalid_issuer"
	CodeInvalidType             = "invalid_type"
	CodeReplayDetected          = "token_replayed"
	CodeReplayAddFailed         = "replay_cache_add_failed"
	CodeInvalidSigningKey       = "invalid_signing_key"
	CodeArgument                = "invalid_argument"
	CodeHeaderCollision         = "header_claim_collision"
)
