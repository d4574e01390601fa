package handler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/identitymodel/go-jsonwebtoken/compression"
	"github.com/identitymodel/go-jsonwebtoken/cryptoprovider"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

func Test_New(t *testing.T) {
	testCases := []struct {
		name    string
		options []Option
		wantErr string
	}{
		{
			name: "it applies every option",
			options: []Option{
				WithMaximumTokenSize(1024),
				WithSetDefaultTimesOnTokenCreation(false),
				WithTokenLifetime(time.Minute),
				WithTracer(noop.NewTracerProvider().Tracer("test")),
				WithMetrics(NoopMetrics{}),
			},
		},
		{
			name:    "it rejects a zero maximum token size",
			options: []Option{WithMaximumTokenSize(0)},
			wantErr: "invalid option: maximum token size must be positive",
		},
		{
			name:    "it rejects a negative token lifetime",
			options: []Option{WithTokenLifetime(-time.Second)},
			wantErr: "invalid option: token lifetime must be positive",
		},
		{
			name:    "it rejects a nil logger",
			options: []Option{WithLogger(nil)},
			wantErr: "invalid option: logger cannot be nil",
		},
		{
			name:    "it rejects a nil tracer",
			options: []Option{WithTracer(nil)},
			wantErr: "invalid option: tracer cannot be nil",
		},
		{
			name:    "it rejects nil metrics",
			options: []Option{WithMetrics(nil)},
			wantErr: "invalid option: metrics cannot be nil",
		},
		{
			name:    "it rejects a nil clock",
			options: []Option{WithClock(nil)},
			wantErr: "invalid option: clock cannot be nil",
		},
		{
			name:    "it rejects a nil crypto provider factory",
			options: []Option{WithCryptoProviderFactory(nil)},
			wantErr: "invalid option: crypto provider factory cannot be nil",
		},
		{
			name:    "it rejects a nil compression factory",
			options: []Option{WithCompressionFactory(nil)},
			wantErr: "invalid option: compression factory cannot be nil",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			h, err := New(testCase.options...)
			if testCase.wantErr != "" {
				assert.EqualError(t, err, testCase.wantErr)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1024, h.MaximumTokenSize())
			assert.False(t, h.setDefaultTimes)
			assert.Equal(t, time.Minute, h.tokenLifetime)
		})
	}

	t.Run("it uses the defaults", func(t *testing.T) {
		h, err := New()
		require.NoError(t, err)
		assert.Equal(t, DefaultMaximumTokenSize, h.MaximumTokenSize())
		assert.True(t, h.setDefaultTimes)
		assert.Equal(t, DefaultTokenLifetime, h.tokenLifetime)
	})
}

func Test_ReadToken(t *testing.T) {
	f := newSigningFixture(t)
	h := newTestHandler(t, WithMaximumTokenSize(2048))

	token, err := h.CreateToken(&TokenDescriptor{Subject: "alice", SigningCredentials: f.credentials()})
	require.NoError(t, err)

	t.Run("it reads a signed token", func(t *testing.T) {
		assert.True(t, h.CanReadToken(token))

		parsed, err := h.ReadToken(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", parsed.Subject())
		assert.Equal(t, "RS256", parsed.Alg())
		assert.Equal(t, "rsa-1", parsed.Kid())
		assert.Nil(t, parsed.SigningKey())
	})

	t.Run("it does not read a token over the maximum size", func(t *testing.T) {
		large := token + strings.Repeat("A", 2048)
		assert.False(t, h.CanReadToken(large))

		_, err := h.ReadToken(large)
		assert.ErrorIs(t, err, tokenerr.ErrArgument)
		assert.Equal(t, tokenerr.CodeTooLarge, tokenerr.CodeOf(err))

		result := h.ValidateToken(context.Background(), large, permissiveParameters())
		assert.Equal(t, tokenerr.CodeTooLarge, tokenerr.CodeOf(result.Err))
	})

	t.Run("it does not read an empty token", func(t *testing.T) {
		assert.False(t, h.CanReadToken(""))

		_, err := h.ReadToken("")
		assert.ErrorIs(t, err, tokenerr.ErrArgument)
	})

	t.Run("it validates a token it has already read", func(t *testing.T) {
		parsed, err := h.ReadToken(token)
		require.NoError(t, err)

		p := permissiveParameters()
		p.IssuerSigningKey = f.public

		result := h.ValidateParsedToken(context.Background(), parsed, p)
		require.NoError(t, result.Err)
		assert.True(t, result.IsValid)
		assert.Same(t, parsed, result.SecurityToken)
		require.NotNil(t, parsed.SigningKey())
		assert.Equal(t, "rsa-1", parsed.SigningKey().KeyID())

		result = h.ValidateParsedToken(context.Background(), nil, p)
		assert.ErrorIs(t, result.Err, tokenerr.ErrArgument)
	})

	t.Run("it sets the inner token of a JWE it has already read", func(t *testing.T) {
		key := symmetricKey(t, 32, "enc-1")
		encrypted, err := h.EncryptToken(token, &EncryptingCredentials{Key: key, Algorithm: cryptoprovider.Direct, Encryption: cryptoprovider.A128CBCHS256}, "", nil)
		require.NoError(t, err)

		parsed, err := h.ReadToken(encrypted)
		require.NoError(t, err)
		require.Nil(t, parsed.InnerToken())

		p := permissiveParameters()
		p.IssuerSigningKey = f.public
		p.TokenDecryptionKey = key

		result := h.ValidateParsedToken(context.Background(), parsed, p)
		require.NoError(t, result.Err)
		assert.Same(t, parsed, result.SecurityToken)
		require.NotNil(t, parsed.InnerToken())
		assert.Equal(t, "alice", parsed.InnerToken().Subject())
		assert.Equal(t, "rsa-1", parsed.InnerToken().SigningKey().KeyID())
	})
}

func Test_ValidateToken_DecryptedSize(t *testing.T) {
	f := newSigningFixture(t)
	creator := newTestHandler(t)
	key := symmetricKey(t, 32, "enc-1")

	token, err := creator.CreateToken(&TokenDescriptor{
		Subject:               "alice",
		Claims:                map[string]any{"blob": strings.Repeat("a", 20000)},
		SigningCredentials:    f.credentials(),
		EncryptingCredentials: &EncryptingCredentials{Key: key, Algorithm: cryptoprovider.Direct, Encryption: cryptoprovider.A128CBCHS256},
		CompressionAlgorithm:  compression.Deflate,
	})
	require.NoError(t, err)

	p := permissiveParameters()
	p.IssuerSigningKey = f.public
	p.TokenDecryptionKey = key

	t.Run("it validates the compressed token within the maximum size", func(t *testing.T) {
		result := creator.ValidateToken(context.Background(), token, p)
		require.NoError(t, result.Err)
		assert.True(t, result.IsValid)
	})

	t.Run("it does not validate a decrypted token over the maximum size", func(t *testing.T) {
		h := newTestHandler(t, WithMaximumTokenSize(4096))
		require.Less(t, len(token), 4096)

		result := h.ValidateToken(context.Background(), token, p)
		assert.False(t, result.IsValid)
		assert.ErrorIs(t, result.Err, tokenerr.ErrArgument)
		assert.Equal(t, tokenerr.CodeTooLarge, tokenerr.CodeOf(result.Err))
	})
}

func Test_ValidationParameters(t *testing.T) {
	p := DefaultValidationParameters()
	assert.True(t, p.RequireSignedTokens)
	assert.True(t, p.ValidateLifetime)
	assert.True(t, p.ValidateAudience)
	assert.True(t, p.ValidateIssuer)
	assert.Equal(t, DefaultClockSkew, p.ClockSkew)

	clone := p.Clone()
	clone.ValidateIssuer = false
	assert.True(t, p.ValidateIssuer)
}

func counterValue(t *testing.T, m *PrometheusMetrics, name string, labels prometheus.Labels) float64 {
	t.Helper()
	vec, ok := m.counters[name]
	require.True(t, ok, "counter %s should be registered", name)

	metric := &dto.Metric{}
	require.NoError(t, vec.With(labels).Write(metric))
	return metric.GetCounter().GetValue()
}

func Test_Metrics(t *testing.T) {
	f := newSigningFixture(t)
	metrics := NewPrometheusMetrics(prometheus.NewRegistry())
	h := newTestHandler(t, WithMetrics(metrics), WithTracer(noop.NewTracerProvider().Tracer("test")))

	token, err := h.CreateToken(&TokenDescriptor{Subject: "alice", SigningCredentials: f.credentials()})
	require.NoError(t, err)

	p := permissiveParameters()
	p.IssuerSigningKey = f.public
	require.True(t, h.ValidateToken(context.Background(), token, p).IsValid)
	require.True(t, h.ValidateToken(context.Background(), token, p).IsValid)

	p.IssuerSigningKey = f.otherPublic
	require.False(t, h.ValidateToken(context.Background(), token, p).IsValid)

	assert.Equal(t, float64(2), counterValue(t, metrics, MetricValidations, prometheus.Labels{"result": "valid"}))
	assert.Equal(t, float64(1), counterValue(t, metrics, MetricValidations, prometheus.Labels{"result": tokenerr.CodeSignatureKeyNotFound}))

	hist, ok := metrics.histograms[MetricValidationDuration]
	require.True(t, ok)
	assert.NotNil(t, hist)
}

func Test_PrometheusMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewPrometheusMetrics(reg)
	second := NewPrometheusMetrics(reg)

	tags := map[string]string{"result": "valid"}
	first.IncCounter(MetricValidations, tags)
	second.IncCounter(MetricValidations, tags)

	assert.Equal(t, float64(2), counterValue(t, first, MetricValidations, tags))
	assert.Same(t, first.counters[MetricValidations], second.counters[MetricValidations])
}

func Test_NoopMetrics(t *testing.T) {
	metrics := NoopMetrics{}
	metrics.IncCounter("counter", map[string]string{"tag": "value"})
	metrics.ObserveHistogram("histogram", 1.5, map[string]string{"tag": "value"})
}
