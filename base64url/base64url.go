// Package base64url implements the URL-safe, unpadded Base64 encoding used by
// the JWS and JWE compact serializations (RFC 7515 section 2).
//
// Encoding never emits '=' padding. Decoding accepts input with or without
// trailing padding.
package base64url

import (
	"fmt"

	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// decodeTable maps an input byte to its 6-bit value, or -1 when the byte is not
// part of the alphabet.
var decodeTable [256]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		decodeTable[alphabet[i]] = int8(i)
	}
}

// EncodedLen returns the length of the unpadded encoding of n bytes.
func EncodedLen(n int) int {
	return n/3*4 + (n%3*8+5)/6
}

// Encode returns the Base64Url encoding of src.
func Encode(src []byte) string {
	if len(src) == 0 {
		return ""
	}
	dst := make([]byte, EncodedLen(len(src)))
	encode(dst, src)
	return string(dst)
}

// EncodeString returns the Base64Url encoding of the UTF-8 bytes of s.
func EncodeString(s string) string {
	return Encode([]byte(s))
}

func encode(dst, src []byte) {
	di, si := 0, 0
	n := len(src) / 3 * 3
	for si < n {
		v := uint(src[si])<<16 | uint(src[si+1])<<8 | uint(src[si+2])

		dst[di+0] = alphabet[v>>18&0x3F]
		dst[di+1] = alphabet[v>>12&0x3F]
		dst[di+2] = alphabet[v>>6&0x3F]
		dst[di+3] = alphabet[v&0x3F]

		si += 3
		di += 4
	}

	switch len(src) - si {
	case 2:
		v := uint(src[si])<<16 | uint(src[si+1])<<8
		dst[di+0] = alphabet[v>>18&0x3F]
		dst[di+1] = alphabet[v>>12&0x3F]
		dst[di+2] = alphabet[v>>6&0x3F]
	case 1:
		v := uint(src[si]) << 16
		dst[di+0] = alphabet[v>>18&0x3F]
		dst[di+1] = alphabet[v>>12&0x3F]
	}
}

func trimPadding(s string) string {
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return s
}

func decodedLen(n int) int {
	switch n % 4 {
	case 2:
		return n/4*3 + 1
	case 3:
		return n/4*3 + 2
	default:
		return n / 4 * 3
	}
}

// DecodedLen returns the number of bytes s decodes to. The result is only
// meaningful when s is a valid encoding.
func DecodedLen(s string) int {
	return decodedLen(len(trimPadding(s)))
}

// Decode returns the bytes represented by the Base64Url string s. The result
// is never nil: decoding "" yields a zero-length slice.
func Decode(s string) ([]byte, error) {
	dst := make([]byte, DecodedLen(s))
	n, err := DecodeInto(dst, s)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// DecodeString decodes s and returns the result as a string.
func DecodeString(s string) (string, error) {
	b, err := Decode(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeInto decodes src directly into dst and returns the number of bytes
// written. It reads src as a string so token segments can be decoded without
// first copying them into a byte slice. dst must hold at least DecodedLen(src)
// bytes.
func DecodeInto(dst []byte, src string) (int, error) {
	src = trimPadding(src)
	n := len(src)
	if n%4 == 1 {
		return 0, tokenerr.New(
			tokenerr.ErrFormat,
			tokenerr.CodeInvalidBase64,
			fmt.Sprintf("base64url: invalid encoded length %d", n),
			nil,
		)
	}

	need := decodedLen(n)
	if len(dst) < need {
		return 0, tokenerr.New(
			tokenerr.ErrArgument,
			tokenerr.CodeArgument,
			fmt.Sprintf("base64url: destination holds %d bytes, %d required", len(dst), need),
			nil,
		)
	}

	si, di := 0, 0
	full := n / 4 * 4
	for si < full {
		v := int32(decodeTable[src[si]])<<18 |
			int32(decodeTable[src[si+1]])<<12 |
			int32(decodeTable[src[si+2]])<<6 |
			int32(decodeTable[src[si+3]])
		if v < 0 {
			return 0, invalidCharacter(src, si, 4)
		}

		dst[di+0] = byte(v >> 16)
		dst[di+1] = byte(v >> 8)
		dst[di+2] = byte(v)

		si += 4
		di += 3
	}

	switch n - si {
	case 3:
		v := int32(decodeTable[src[si]])<<18 |
			int32(decodeTable[src[si+1]])<<12 |
			int32(decodeTable[src[si+2]])<<6
		if v < 0 {
			return 0, invalidCharacter(src, si, 3)
		}
		dst[di+0] = byte(v >> 16)
		dst[di+1] = byte(v >> 8)
		di += 2
	case 2:
		v := int32(decodeTable[src[si]])<<18 |
			int32(decodeTable[src[si+1]])<<12
		if v < 0 {
			return 0, invalidCharacter(src, si, 2)
		}
		dst[di] = byte(v >> 16)
		di++
	}

	return di, nil
}

// IsEncoded reports whether s could be a Base64Url encoding: every byte is in
// the alphabet, apart from trailing padding, and the length is not 1 modulo 4.
func IsEncoded(s string) bool {
	s = trimPadding(s)
	if len(s)%4 == 1 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if decodeTable[s[i]] < 0 {
			return false
		}
	}
	return true
}

func invalidCharacter(src string, start, width int) error {
	pos := start
	for i := start; i < start+width; i++ {
		if decodeTable[src[i]] < 0 {
			pos = i
			break
		}
	}
	return tokenerr.New(
		tokenerr.ErrFormat,
		tokenerr.CodeInvalidBase64,
		fmt.Sprintf("base64url: illegal character %q at offset %d", src[pos], pos),
		nil,
	)
}
