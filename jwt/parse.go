// Package jwt reads JSON Web Tokens in the JWS and JWE compact serializations.
//
// A Token is parsed once from its encoded form. Header and payload members are
// exposed through accessors that compute their value on first use and return
// the same value afterwards.
package jwt

import (
	"fmt"

	"github.com/identitymodel/go-jsonwebtoken/base64url"
	"github.com/identitymodel/go-jsonwebtoken/claims"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

const (
	// JWSSegmentCount is the number of segments in a JWS compact serialization.
	JWSSegmentCount = 3

	// JWESegmentCount is the number of segments in a JWE compact serialization.
	JWESegmentCount = 5

	// MaxSegmentCount is the largest number of segments any token may have.
	MaxSegmentCount = JWESegmentCount
)

// SegmentCount returns the number of dot separated segments in s. Counting
// stops once MaxSegmentCount+1 segments are seen.
func SegmentCount(s string) int {
	if s == "" {
		return 0
	}
	n := 1
	for i := 0; i < len(s) && n <= MaxSegmentCount; i++ {
		if s[i] == '.' {
			n++
		}
	}
	return n
}

// CanRead reports whether s has the shape of a JWS or JWE no longer than
// maxSize bytes. It does not decode any segment.
func CanRead(s string, maxSize int) bool {
	if s == "" || (maxSize > 0 && len(s) > maxSize) {
		return false
	}

	start, segments := 0, 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != '.' {
			continue
		}
		if !base64url.IsEncoded(s[start:i]) {
			return false
		}
		segments++
		if segments > MaxSegmentCount {
			return false
		}
		start = i + 1
	}
	return segments == JWSSegmentCount || segments == JWESegmentCount
}

// Parse reads a compact serialized JWS (three segments) or JWE (five
// segments). Errors match tokenerr.ErrParse.
func Parse(s string) (*Token, error) {
	if s == "" {
		return nil, tokenerr.New(tokenerr.ErrArgument, tokenerr.CodeArgument, "token is empty", nil)
	}

	var dots [MaxSegmentCount]int
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '.' {
			continue
		}
		if n == len(dots) {
			n++
			break
		}
		dots[n] = i
		n++
	}

	switch n + 1 {
	case JWSSegmentCount:
		return parseJWS(s, dots[0], dots[1])
	case JWESegmentCount:
		return parseJWE(s, dots[:4])
	default:
		return nil, tokenerr.New(
			tokenerr.ErrParse,
			tokenerr.CodeMalformed,
			fmt.Sprintf("token must have %d or %d segments, found %s", JWSSegmentCount, JWESegmentCount, describeCount(n+1)),
			nil,
		)
	}
}

func describeCount(n int) string {
	if n > MaxSegmentCount {
		return fmt.Sprintf("more than %d", MaxSegmentCount)
	}
	return fmt.Sprint(n)
}

func parseJWS(s string, d0, d1 int) (*Token, error) {
	t := &Token{
		encoded:          s,
		segments:         JWSSegmentCount,
		encodedHeader:    s[:d0],
		encodedPayload:   s[d0+1 : d1],
		encodedSignature: s[d1+1:],
	}

	var err error
	if t.header, err = decodeClaims("header", t.encodedHeader, s); err != nil {
		return nil, err
	}
	if t.payload, err = decodeClaims("payload", t.encodedPayload, s); err != nil {
		return nil, err
	}
	if t.signature, err = decodeSegment("signature", t.encodedSignature, s); err != nil {
		return nil, err
	}
	return t, nil
}

func parseJWE(s string, dots []int) (*Token, error) {
	t := &Token{
		encoded:             s,
		segments:            JWESegmentCount,
		encodedHeader:       s[:dots[0]],
		encodedEncryptedKey: s[dots[0]+1 : dots[1]],
		encodedIV:           s[dots[1]+1 : dots[2]],
		encodedCiphertext:   s[dots[2]+1 : dots[3]],
		encodedTag:          s[dots[3]+1:],
		payload:             claims.Empty(),
	}

	var err error
	if t.header, err = decodeClaims("header", t.encodedHeader, s); err != nil {
		return nil, err
	}
	t.headerBytes = []byte(t.encodedHeader)

	if t.encryptedKey, err = decodeSegment("encrypted key", t.encodedEncryptedKey, s); err != nil {
		return nil, err
	}
	if t.iv, err = decodeSegment("initialization vector", t.encodedIV, s); err != nil {
		return nil, err
	}
	if t.ciphertext, err = decodeSegment("ciphertext", t.encodedCiphertext, s); err != nil {
		return nil, err
	}
	if len(t.ciphertext) == 0 {
		return nil, tokenerr.New(
			tokenerr.ErrParse,
			tokenerr.CodeEmptyCiphertext,
			"JWE ciphertext is empty",
			nil,
		)
	}
	if t.tag, err = decodeSegment("authentication tag", t.encodedTag, s); err != nil {
		return nil, err
	}
	return t, nil
}

func decodeSegment(name, segment, token string) ([]byte, error) {
	b, err := base64url.Decode(segment)
	if err != nil {
		return nil, tokenerr.New(
			tokenerr.ErrParse,
			tokenerr.CodeMalformed,
			"failed to decode the token "+name+" as base64url",
			&SegmentError{Segment: name, Token: token, Err: err},
		)
	}
	return b, nil
}

func decodeClaims(name, segment, token string) (*claims.Set, error) {
	b, err := decodeSegment(name, segment, token)
	if err != nil {
		return nil, err
	}
	set, err := claims.Parse(b)
	if err != nil {
		return nil, tokenerr.New(
			tokenerr.ErrParse,
			tokenerr.CodeMalformed,
			"failed to parse the token "+name+" as a JSON object",
			&SegmentError{Segment: name, Token: token, Err: err},
		)
	}
	return set, nil
}

// SegmentError carries the encoded token whose segment could not be read.
// Error does not include Token.
type SegmentError struct {
	Segment string
	Token   string
	Err     error
}

func (e *SegmentError) Error() string {
	return e.Err.Error()
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}
