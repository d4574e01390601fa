package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/identitymodel/go-jsonwebtoken/configuration"
	"github.com/identitymodel/go-jsonwebtoken/cryptoprovider"
	"github.com/identitymodel/go-jsonwebtoken/jwt"
	"github.com/identitymodel/go-jsonwebtoken/tokenerr"
)

// DecryptToken decrypts a JWE with the decryption keys of p and returns the
// compact token it contains.
func (h *TokenHandler) DecryptToken(token *jwt.Token, p *ValidationParameters) (string, error) {
	if token == nil || p == nil {
		return "", tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "token and validation parameters are required")
	}
	return h.decryptToken(token, p, nil)
}

func (h *TokenHandler) decryptToken(token *jwt.Token, p *ValidationParameters, cfg *configuration.Configuration) (string, error) {
	if !token.IsEncrypted() {
		return "", tokenerr.Newf(tokenerr.ErrArgument, tokenerr.CodeArgument, "token is not a JWE")
	}
	enc := token.Enc()
	if enc == "" {
		return "", tokenerr.Newf(tokenerr.ErrDecryptionFailed, tokenerr.CodeDecryptionFailed, "JWE header has no enc parameter")
	}

	keys, err := h.contentEncryptionKeys(token, p, cfg)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", tokenerr.Newf(tokenerr.ErrDecryptionKeyNotFound, tokenerr.CodeDecryptionKeyNotFound,
			"no key is available to decrypt the token (kid %q, alg %q)", token.Kid(), token.Alg())
	}

	factory := h.cryptoFactoryFor(p)
	var errs *multierror.Error
	var attempted []string
	var plaintext []byte

	for _, key := range keys {
		if key == nil {
			continue
		}
		desc := cryptoprovider.DescribeKey(key)
		if !factory.IsSupportedEncryption(enc, key) {
			h.logger.Debugf("skipping key %s: encryption %q is not supported with it", desc, enc)
			continue
		}
		attempted = append(attempted, desc)

		out, err := decrypt(factory, key, enc, token)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("key %s: %w", desc, err))
			continue
		}
		plaintext = out
		break
	}

	if plaintext == nil {
		if len(attempted) == 0 {
			return "", tokenerr.Newf(tokenerr.ErrDecryptionKeyNotFound, tokenerr.CodeDecryptionKeyNotFound,
				"no key supports encryption %q (kid %q)", enc, token.Kid())
		}
		return "", tokenerr.New(tokenerr.ErrDecryptionFailed, tokenerr.CodeDecryptionFailed,
			fmt.Sprintf("token could not be decrypted; keys tried: %s", strings.Join(attempted, ", ")),
			errs.ErrorOrNil())
	}

	if zip := token.Zip(); zip != "" {
		if plaintext, err = h.decompress(zip, plaintext); err != nil {
			return "", err
		}
	}
	return string(plaintext), nil
}

func decrypt(factory cryptoprovider.ProviderFactory, key jwk.Key, enc string, token *jwt.Token) ([]byte, error) {
	provider, err := factory.CreateAuthenticatedEncryptionProvider(key, enc)
	if err != nil {
		return nil, err
	}
	defer provider.Close()
	return provider.Decrypt(token.Ciphertext(), token.EncodedHeaderBytes(), token.InitializationVector(), token.AuthenticationTag())
}

func (h *TokenHandler) decompress(zip string, data []byte) ([]byte, error) {
	if !h.compressionFactory.IsSupported(zip) {
		return nil, tokenerr.Newf(tokenerr.ErrDecompressionFailed, tokenerr.CodeDecompressionFailed,
			"compression algorithm %q is not supported", zip)
	}
	provider, err := h.compressionFactory.Provider(zip)
	if err != nil {
		return nil, tokenerr.New(tokenerr.ErrDecompressionFailed, tokenerr.CodeDecompressionFailed, "failed to create decompression provider", err)
	}
	out, err := provider.Decompress(data)
	if err != nil {
		return nil, tokenerr.New(tokenerr.ErrDecompressionFailed, tokenerr.CodeDecompressionFailed, "failed to decompress token", err)
	}
	return out, nil
}

// contentEncryptionKeys resolves the keys that can decrypt token. For key
// wrap algorithms the encrypted key is unwrapped with each candidate.
func (h *TokenHandler) contentEncryptionKeys(token *jwt.Token, p *ValidationParameters, cfg *configuration.Configuration) ([]jwk.Key, error) {
	var keys []jwk.Key
	if p.TokenDecryptionKeyResolver != nil {
		keys = p.TokenDecryptionKeyResolver(token.EncodedToken(), token, token.Kid(), p)
	} else {
		if key := resolveDecryptionKey(token, p, cfg); key != nil {
			keys = []jwk.Key{key}
		}
		if len(keys) == 0 {
			keys = allDecryptionKeys(p, cfg)
		}
	}

	alg := token.Alg()
	if cryptoprovider.IsDirect(alg) {
		return keys, nil
	}

	factory := h.cryptoFactoryFor(p)
	var errs *multierror.Error
	var attempted []string
	var unwrapped []jwk.Key

	for _, key := range keys {
		if key == nil || !factory.IsSupportedKeyWrap(alg, key) {
			continue
		}
		desc := cryptoprovider.DescribeKey(key)
		attempted = append(attempted, desc)

		cek, err := unwrap(factory, key, alg, token.Enc(), token.EncryptedKey())
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("key %s: %w", desc, err))
			continue
		}
		symmetric, err := cryptoprovider.SymmetricKey(cek)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("key %s: %w", desc, err))
			continue
		}
		unwrapped = append(unwrapped, symmetric)
	}

	if len(unwrapped) == 0 && errs != nil {
		return nil, tokenerr.New(tokenerr.ErrKeyWrap, tokenerr.CodeKeyWrapFailed,
			fmt.Sprintf("content encryption key could not be unwrapped with %q; keys tried: %s", alg, strings.Join(attempted, ", ")),
			errs.ErrorOrNil())
	}
	return unwrapped, nil
}

func unwrap(factory cryptoprovider.ProviderFactory, key jwk.Key, alg, enc string, wrapped []byte) ([]byte, error) {
	if len(wrapped) == 0 {
		return nil, errors.New("JWE has no encrypted key")
	}
	provider, err := factory.CreateKeyWrapProvider(key, alg)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	if session, ok := provider.(cryptoprovider.SessionKeyUnwrapper); ok {
		size, _ := cryptoprovider.ContentKeySize(enc)
		return session.UnwrapSessionKey(wrapped, size)
	}
	return provider.UnwrapKey(wrapped)
}

func resolveDecryptionKey(token *jwt.Token, p *ValidationParameters, cfg *configuration.Configuration) jwk.Key {
	kid, x5t := token.Kid(), token.X5t()
	if kid == "" && x5t == "" {
		return nil
	}
	if key := matchKey(p.decryptionKeys(), kid, x5t); key != nil {
		return key
	}
	if cfg != nil {
		return matchKey(cfg.TokenDecryptionKeys, kid, x5t)
	}
	return nil
}

func allDecryptionKeys(p *ValidationParameters, cfg *configuration.Configuration) []jwk.Key {
	keys := p.decryptionKeys()
	if cfg != nil {
		keys = append(keys, cfg.TokenDecryptionKeys...)
	}
	return keys
}
