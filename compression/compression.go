// Package compression provides the payload compression used by JWE "zip".
package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Deflate is the "zip" header value for raw DEFLATE (RFC 1951).
const Deflate = "DEF"

// DefaultMaxDecompressedSize bounds the output of Decompress.
const DefaultMaxDecompressedSize = 10 * 1024 * 1024

var (
	// ErrUnsupported is returned for an unknown compression algorithm.
	ErrUnsupported = errors.New("unsupported compression algorithm")

	// ErrTooLarge is returned when decompressed output exceeds the limit.
	ErrTooLarge = errors.New("decompressed payload exceeds the size limit")
)

// Provider compresses and decompresses with one algorithm.
type Provider interface {
	Algorithm() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// ProviderFactory hands out compression providers by algorithm name.
type ProviderFactory interface {
	IsSupported(alg string) bool
	Provider(alg string) (Provider, error)
}

// Factory is the default ProviderFactory. It knows Deflate.
type Factory struct {
	maxDecompressedSize int64
	level               int
}

// Option is how options for the Factory are set up.
type Option func(*Factory) error

// WithMaxDecompressedSize sets the largest output Decompress will produce.
func WithMaxDecompressedSize(n int64) Option {
	return func(f *Factory) error {
		if n <= 0 {
			return errors.New("max decompressed size must be positive")
		}
		f.maxDecompressedSize = n
		return nil
	}
}

// WithLevel sets the DEFLATE compression level.
func WithLevel(level int) Option {
	return func(f *Factory) error {
		if level < flate.HuffmanOnly || level > flate.BestCompression {
			return fmt.Errorf("invalid compression level %d", level)
		}
		f.level = level
		return nil
	}
}

// NewFactory returns a Factory.
func NewFactory(opts ...Option) (*Factory, error) {
	f := &Factory{
		maxDecompressedSize: DefaultMaxDecompressedSize,
		level:               flate.DefaultCompression,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return f, nil
}

// Default returns a Factory with default options.
func Default() *Factory {
	f, _ := NewFactory()
	return f
}

// IsSupported reports whether alg is known.
func (f *Factory) IsSupported(alg string) bool {
	return alg == Deflate
}

// Provider returns the provider for alg.
func (f *Factory) Provider(alg string) (Provider, error) {
	if !f.IsSupported(alg) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, alg)
	}
	return &deflateProvider{max: f.maxDecompressedSize, level: f.level}, nil
}

type deflateProvider struct {
	max   int64
	level int
}

func (p *deflateProvider) Algorithm() string { return Deflate }

func (p *deflateProvider) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, p.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to deflate: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *deflateProvider) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, p.max+1))
	if err != nil {
		return nil, fmt.Errorf("failed to inflate: %w", err)
	}
	if int64(len(out)) > p.max {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, p.max)
	}
	return out, nil
}
