package claims

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

const payload = `{
	"sub": "alice",
	"aud": ["api1", "api2"],
	"exp": 1700000000,
	"nbf": "1600000000",
	"iat": 1500000000.75,
	"admin": true,
	"nothing": null,
	"address": {"city": "Oslo"},
	"matrix": [[1,2],"x"],
	"updated": "2021-03-04T05:06:07Z",
	"small": 7,
	"medium": 70000,
	"large": 5000000000,
	"huge": 18446744073709551615,
	"ratio": 0.5
}`

func mustParse(t *testing.T, data string) *Set {
	t.Helper()
	s, err := Parse([]byte(data))
	require.NoError(t, err)
	return s
}

func Test_Parse(t *testing.T) {
	t.Run("it rejects values that are not objects", func(t *testing.T) {
		for _, input := range []string{"", "null", "[]", `"x"`, "12"} {
			_, err := Parse([]byte(input))
			assert.Error(t, err, input)
		}
	})

	t.Run("it rejects invalid JSON", func(t *testing.T) {
		_, err := Parse([]byte(`{"sub":`))
		assert.Error(t, err)
	})

	t.Run("it keeps member names sorted", func(t *testing.T) {
		s := mustParse(t, `{"b":1,"a":2,"c":3}`)
		assert.Equal(t, []string{"a", "b", "c"}, s.Keys())
		assert.Equal(t, 3, s.Len())
	})

	t.Run("an empty set has no members", func(t *testing.T) {
		s := Empty()
		assert.False(t, s.Has("sub"))
		assert.Empty(t, s.Claims(""))
	})
}

func Test_GetString(t *testing.T) {
	s := mustParse(t, payload)

	assert.Equal(t, "alice", s.GetString("sub"))
	assert.Equal(t, "", s.GetString("missing"))
	assert.Equal(t, "", s.GetString("exp"))
	assert.Equal(t, "", s.GetString("aud"))
	assert.Equal(t, "", s.GetString("nothing"))
}

func Test_GetValue(t *testing.T) {
	s := mustParse(t, payload)

	t.Run("missing keys are an error", func(t *testing.T) {
		_, err := GetValue[string](s, "missing")
		assert.True(t, errors.Is(err, ErrClaimNotFound))

		_, ok := TryGetValue[string](s, "missing")
		assert.False(t, ok)
	})

	t.Run("null maps to the zero value", func(t *testing.T) {
		v, err := GetValue[int64](s, "nothing")
		require.NoError(t, err)
		assert.Equal(t, int64(0), v)

		str, err := GetValue[string](s, "nothing")
		require.NoError(t, err)
		assert.Equal(t, "", str)
	})

	t.Run("scalars read as strings keep their literal text", func(t *testing.T) {
		v, err := GetValue[string](s, "exp")
		require.NoError(t, err)
		assert.Equal(t, "1700000000", v)

		v, err = GetValue[string](s, "admin")
		require.NoError(t, err)
		assert.Equal(t, "true", v)
	})

	t.Run("a single string reads as a string slice", func(t *testing.T) {
		v, err := GetValue[[]string](s, "sub")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, v)

		v, err = GetValue[[]string](s, "aud")
		require.NoError(t, err)
		assert.Equal(t, []string{"api1", "api2"}, v)
	})

	t.Run("objects decode into maps", func(t *testing.T) {
		v, err := GetValue[map[string]string](s, "address")
		require.NoError(t, err)
		if diff := cmp.Diff(map[string]string{"city": "Oslo"}, v); diff != "" {
			t.Errorf("unexpected address (-want +got):\n%s", diff)
		}
	})

	t.Run("times use seconds since the epoch", func(t *testing.T) {
		v, err := GetValue[time.Time](s, "exp")
		require.NoError(t, err)
		assert.Equal(t, time.Unix(1700000000, 0).UTC(), v)
	})

	t.Run("a failed conversion is an error", func(t *testing.T) {
		_, err := GetValue[int](s, "sub")
		assert.True(t, errors.Is(err, ErrClaimConversion))

		_, ok := TryGetValue[bool](s, "aud")
		assert.False(t, ok)
	})

	t.Run("numbers decode into numeric types", func(t *testing.T) {
		v, ok := TryGetValue[float64](s, "ratio")
		require.True(t, ok)
		assert.Equal(t, 0.5, v)
	})
}

func Test_GetDateTime(t *testing.T) {
	s := mustParse(t, payload)

	testCases := []struct {
		name string
		key  string
		want time.Time
	}{
		{name: "absent key yields the zero time", key: "missing", want: time.Time{}},
		{name: "integer seconds", key: "exp", want: time.Unix(1700000000, 0).UTC()},
		{name: "numeric string", key: "nbf", want: time.Unix(1600000000, 0).UTC()},
		{name: "fractional seconds are truncated", key: "iat", want: time.Unix(1500000000, 0).UTC()},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := s.GetDateTime(testCase.key)
			require.NoError(t, err)
			assert.True(t, testCase.want.Equal(got), "want %v, got %v", testCase.want, got)
		})
	}

	t.Run("non numeric values are a format error", func(t *testing.T) {
		for _, key := range []string{"sub", "admin", "address", "aud"} {
			_, err := s.GetDateTime(key)
			require.Error(t, err, key)
			assert.True(t, errors.Is(err, tokenerr.ErrFormat), key)
			assert.Equal(t, tokenerr.CodeInvalidDate, tokenerr.CodeOf(err))
		}
	})
}

func Test_Claims(t *testing.T) {
	s := mustParse(t, payload)

	list := s.Claims("https://issuer.example")

	find := func(claimType string) []Claim {
		var out []Claim
		for _, c := range list {
			if c.Type == claimType {
				out = append(out, c)
			}
		}
		return out
	}

	t.Run("arrays are expanded one level", func(t *testing.T) {
		aud := find("aud")
		require.Len(t, aud, 2)
		assert.Equal(t, "api1", aud[0].Value)
		assert.Equal(t, "api2", aud[1].Value)

		matrix := find("matrix")
		require.Len(t, matrix, 2)
		assert.Equal(t, "[1,2]", matrix[0].Value)
		assert.Equal(t, ValueTypeJSONArray, matrix[0].ValueType)
		assert.Equal(t, "x", matrix[1].Value)
		assert.Equal(t, ValueTypeString, matrix[1].ValueType)
	})

	t.Run("value types follow the JSON shape", func(t *testing.T) {
		testCases := map[string]string{
			"sub":     ValueTypeString,
			"admin":   ValueTypeBoolean,
			"nothing": ValueTypeJSONNull,
			"address": ValueTypeJSON,
			"updated": ValueTypeDateTime,
			"small":   ValueTypeInteger,
			"medium":  ValueTypeInteger32,
			"large":   ValueTypeInteger64,
			"huge":    ValueTypeUInteger64,
			"ratio":   ValueTypeDouble,
		}
		for claimType, want := range testCases {
			got := find(claimType)
			require.Len(t, got, 1, claimType)
			assert.Equal(t, want, got[0].ValueType, claimType)
		}
	})

	t.Run("claims carry the issuer", func(t *testing.T) {
		sub := find("sub")
		require.Len(t, sub, 1)
		assert.Equal(t, "https://issuer.example", sub[0].Issuer)
		assert.Equal(t, "https://issuer.example", sub[0].OriginalIssuer)

		local := s.Claims("")
		assert.Equal(t, DefaultIssuer, local[0].Issuer)
	})

	t.Run("repeated enumeration is stable", func(t *testing.T) {
		again := s.Claims("https://issuer.example")
		if diff := cmp.Diff(list, again); diff != "" {
			t.Errorf("claims changed between reads (-first +second):\n%s", diff)
		}
	})
}

func Test_Identity(t *testing.T) {
	id := NewIdentity("AuthenticationTypes.Federation", "name", "")
	id.AddClaim(NewClaim("name", "Alice", "", "iss"))
	id.AddClaims(
		NewClaim(DefaultRoleClaimType, "admin", "", "iss"),
		NewClaim(DefaultRoleClaimType, "reader", "", "iss"),
	)

	assert.True(t, id.IsAuthenticated())
	assert.Equal(t, "Alice", id.Name())
	assert.Equal(t, []string{"admin", "reader"}, id.Roles())
	assert.True(t, id.HasClaim(DefaultRoleClaimType, "reader"))
	assert.False(t, id.HasClaim(DefaultRoleClaimType, "owner"))
	assert.Len(t, id.FindAll(DefaultRoleClaimType), 2)
	assert.Len(t, id.Claims(), 3)

	_, ok := id.FindFirst("email")
	assert.False(t, ok)

	assert.False(t, NewIdentity("", "", "").IsAuthenticated())
}
