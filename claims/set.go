// Package claims provides read access to the JSON objects carried in token
// headers and payloads.
//
// A Set is parsed once and then queried on demand. Values keep their raw JSON
// text and are converted only when a caller asks for a specific type.
package claims

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

var (
	// ErrClaimNotFound is returned by GetValue when the key is absent.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrClaimConversion is returned by GetValue when the stored value cannot
	// be converted to the requested type.
	ErrClaimConversion = errors.New("claim value cannot be converted")
)

// Kind identifies the JSON shape of a stored value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is one JSON value tagged with its kind.
type Value struct {
	Kind Kind
	Raw  json.RawMessage
}

func newValue(raw json.RawMessage) Value {
	raw = bytes.TrimSpace(raw)
	v := Value{Raw: raw}
	if len(raw) == 0 {
		v.Kind = KindNull
		return v
	}
	switch raw[0] {
	case '"':
		v.Kind = KindString
	case '{':
		v.Kind = KindObject
	case '[':
		v.Kind = KindArray
	case 't', 'f':
		v.Kind = KindBool
	case 'n':
		v.Kind = KindNull
	default:
		v.Kind = KindNumber
	}
	return v
}

// String returns the string form of the value: the unquoted text of a JSON
// string, the literal text of numbers and booleans, the JSON text of objects
// and arrays, and "" for null.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		var s string
		if err := json.Unmarshal(v.Raw, &s); err != nil {
			return ""
		}
		return s
	case KindNull:
		return ""
	default:
		return string(v.Raw)
	}
}

// UnmarshalJSON keeps the raw text of the value and records its kind.
func (v *Value) UnmarshalJSON(b []byte) error {
	*v = newValue(append(json.RawMessage(nil), b...))
	return nil
}

// MarshalJSON returns the raw text of the value.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.Raw) == 0 {
		return []byte("null"), nil
	}
	return v.Raw, nil
}

// Set is a parsed JSON object. It is safe for concurrent use.
type Set struct {
	raw    []byte
	keys   []string
	values map[string]Value

	mu       sync.Mutex
	byIssuer map[string][]Claim
}

// Empty returns a Set with no members.
func Empty() *Set {
	return &Set{raw: []byte("{}"), values: map[string]Value{}}
}

// Parse parses data, which must hold a single JSON object.
func Parse(data []byte) (*Set, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("claims: JSON value is not an object")
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &members); err != nil {
		return nil, fmt.Errorf("claims: %w", err)
	}

	s := &Set{
		raw:    trimmed,
		keys:   make([]string, 0, len(members)),
		values: make(map[string]Value, len(members)),
	}
	for k, raw := range members {
		s.keys = append(s.keys, k)
		s.values[k] = newValue(raw)
	}
	sort.Strings(s.keys)

	return s, nil
}

// Raw returns the JSON text the set was parsed from.
func (s *Set) Raw() []byte {
	return s.raw
}

// Keys returns the member names in sorted order.
func (s *Set) Keys() []string {
	return slices.Clone(s.keys)
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.keys)
}

// Has reports whether key is present, whatever its value.
func (s *Set) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Value returns the raw tagged value stored under key.
func (s *Set) Value(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value of key if it is a JSON string, and "" otherwise.
func (s *Set) GetString(key string) string {
	v, ok := s.values[key]
	if !ok || v.Kind != KindString {
		return ""
	}
	return v.String()
}

// GetDateTime interprets key as seconds since the Unix epoch. The value may
// be a JSON number or a string holding a number; fractional seconds are
// dropped. An absent key yields the zero time and no error.
func (s *Set) GetDateTime(key string) (time.Time, error) {
	v, ok := s.values[key]
	if !ok {
		return time.Time{}, nil
	}

	var text string
	switch v.Kind {
	case KindNumber:
		text = string(v.Raw)
	case KindString:
		text = v.String()
	default:
		return time.Time{}, invalidDate(key, v)
	}

	if secs, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, invalidDate(key, v)
	}
	switch {
	case f > maxUnixSeconds:
		f = maxUnixSeconds
	case f < -maxUnixSeconds:
		f = -maxUnixSeconds
	}
	return time.Unix(int64(f), 0).UTC(), nil
}

// maxUnixSeconds bounds float conversions so int64(f) cannot overflow.
const maxUnixSeconds = 1 << 62

func invalidDate(key string, v Value) error {
	return tokenerr.New(
		tokenerr.ErrFormat,
		tokenerr.CodeInvalidDate,
		fmt.Sprintf("claim %q is a %s, expected seconds since the Unix epoch", key, v.Kind),
		nil,
	)
}

// GetValue converts the value of key to T.
//
// A JSON null yields the zero value of T. A string target accepts any scalar
// and receives its literal text. A []string target also accepts a single
// string. time.Time targets go through GetDateTime. Everything else is
// decoded as JSON into T.
func GetValue[T any](s *Set, key string) (T, error) {
	var out T

	v, ok := s.values[key]
	if !ok {
		return out, fmt.Errorf("%w: %q", ErrClaimNotFound, key)
	}
	if v.Kind == KindNull {
		return out, nil
	}

	switch p := any(&out).(type) {
	case *string:
		*p = v.String()
		return out, nil
	case *[]string:
		if v.Kind == KindString {
			*p = []string{v.String()}
			return out, nil
		}
	case *time.Time:
		t, err := s.GetDateTime(key)
		if err != nil {
			return out, fmt.Errorf("%w: %q: %w", ErrClaimConversion, key, err)
		}
		*p = t
		return out, nil
	case *Value:
		*p = v
		return out, nil
	}

	if err := json.Unmarshal(v.Raw, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %q is a %s and cannot be read as %T: %w", ErrClaimConversion, key, v.Kind, out, err)
	}
	return out, nil
}

// TryGetValue is GetValue without the error.
func TryGetValue[T any](s *Set, key string) (T, bool) {
	v, err := GetValue[T](s, key)
	if err != nil {
		return v, false
	}
	return v, true
}

// Claims returns one Claim per scalar member, and one per element of array
// members. The list is built once per issuer.
func (s *Set) Claims(issuer string) []Claim {
	if issuer == "" {
		issuer = DefaultIssuer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.byIssuer[issuer]; ok {
		return slices.Clone(cached)
	}

	list := make([]Claim, 0, len(s.keys))
	for _, key := range s.keys {
		v := s.values[key]
		if v.Kind != KindArray {
			list = append(list, claimFromValue(key, v, issuer))
			continue
		}

		var elems []json.RawMessage
		if err := json.Unmarshal(v.Raw, &elems); err != nil {
			list = append(list, NewClaim(key, string(v.Raw), ValueTypeJSONArray, issuer))
			continue
		}
		for _, elem := range elems {
			ev := newValue(elem)
			if ev.Kind == KindArray {
				list = append(list, NewClaim(key, string(ev.Raw), ValueTypeJSONArray, issuer))
				continue
			}
			list = append(list, claimFromValue(key, ev, issuer))
		}
	}

	if s.byIssuer == nil {
		s.byIssuer = make(map[string][]Claim)
	}
	s.byIssuer[issuer] = list

	return slices.Clone(list)
}

func claimFromValue(key string, v Value, issuer string) Claim {
	switch v.Kind {
	case KindString:
		str := v.String()
		if _, err := time.Parse(time.RFC3339Nano, str); err == nil {
			return NewClaim(key, str, ValueTypeDateTime, issuer)
		}
		return NewClaim(key, str, ValueTypeString, issuer)
	case KindNumber:
		return NewClaim(key, string(v.Raw), NumberValueType(string(v.Raw)), issuer)
	case KindBool:
		return NewClaim(key, string(v.Raw), ValueTypeBoolean, issuer)
	case KindNull:
		return NewClaim(key, "", ValueTypeJSONNull, issuer)
	case KindArray:
		return NewClaim(key, string(v.Raw), ValueTypeJSONArray, issuer)
	default:
		return NewClaim(key, string(v.Raw), ValueTypeJSON, issuer)
	}
}

// NumberValueType returns the narrowest value type that holds the JSON number
// text.
func NumberValueType(text string) string {
	if _, err := strconv.ParseInt(text, 10, 16); err == nil {
		return ValueTypeInteger
	}
	if _, err := strconv.ParseInt(text, 10, 32); err == nil {
		return ValueTypeInteger32
	}
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return ValueTypeInteger64
	}
	if _, err := strconv.ParseUint(text, 10, 64); err == nil {
		return ValueTypeUInteger64
	}
	return ValueTypeDouble
}
