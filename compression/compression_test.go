package compression

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Factory(t *testing.T) {
	t.Run("it only supports DEF", func(t *testing.T) {
		f := Default()
		assert.True(t, f.IsSupported(Deflate))
		assert.False(t, f.IsSupported("GZIP"))
		assert.False(t, f.IsSupported(""))

		_, err := f.Provider("GZIP")
		assert.True(t, errors.Is(err, ErrUnsupported))
	})

	t.Run("it validates options", func(t *testing.T) {
		_, err := NewFactory(WithMaxDecompressedSize(0))
		assert.EqualError(t, err, "invalid option: max decompressed size must be positive")

		_, err = NewFactory(WithLevel(42))
		assert.EqualError(t, err, "invalid option: invalid compression level 42")
	})
}

func Test_Deflate(t *testing.T) {
	payload := []byte(strings.Repeat(`{"sub":"alice","aud":"api"}`, 50))

	t.Run("it round trips", func(t *testing.T) {
		p, err := Default().Provider(Deflate)
		require.NoError(t, err)
		assert.Equal(t, Deflate, p.Algorithm())

		compressed, err := p.Compress(payload)
		require.NoError(t, err)
		assert.Less(t, len(compressed), len(payload))

		decompressed, err := p.Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, payload, decompressed)
	})

	t.Run("it enforces the size limit", func(t *testing.T) {
		f, err := NewFactory(WithMaxDecompressedSize(100))
		require.NoError(t, err)
		p, err := f.Provider(Deflate)
		require.NoError(t, err)

		compressed, err := p.Compress(payload)
		require.NoError(t, err)

		_, err = p.Decompress(compressed)
		assert.True(t, errors.Is(err, ErrTooLarge))
	})

	t.Run("it rejects data that is not deflated", func(t *testing.T) {
		p, err := Default().Provider(Deflate)
		require.NoError(t, err)

		_, err = p.Decompress(bytes.Repeat([]byte{0xff}, 16))
		assert.Error(t, err)
	})
}
