/*
Package jsonwebtoken reads, creates and validates JSON Web Tokens in their
compact JWS and JWE forms, and guards net/http servers with them.

The token work lives in subpackages:

  - handler: TokenHandler creates tokens and validates them against
    ValidationParameters, returning a ValidationResult
  - jwt: the parsed token model with lazily decoded header and payload
  - configuration: issuer metadata and signing keys fetched from an OpenID
    Connect discovery document or a JWKS endpoint, cached and refreshed
  - cryptoprovider and compression: signature, key wrap, content encryption
    and DEF compression providers
  - tokenerr: error kinds and machine-readable codes
  - replay: a bounded cache of seen tokens

This package is the net/http middleware. framework/gin, framework/echo and
framework/grpc adapt the same validation to those frameworks.

# Quick Start

	issuerURL, _ := url.Parse("https://issuer.example.com/")
	retriever, err := configuration.NewOIDCRetriever(issuerURL)
	if err != nil {
	    log.Fatal(err)
	}
	manager, err := configuration.NewManager(retriever)
	if err != nil {
	    log.Fatal(err)
	}

	h, err := handler.New(handler.WithLogger(logging.Default()))
	if err != nil {
	    log.Fatal(err)
	}

	params := handler.DefaultValidationParameters()
	params.ConfigurationManager = manager
	params.ValidAudience = "my-api"

	middleware, err := jsonwebtoken.New(h, params)
	if err != nil {
	    log.Fatal(err)
	}

	http.ListenAndServe(":3000", middleware.CheckJWT(api))

# Reading the result

The validation result of the request is stored in its context:

	func api(w http.ResponseWriter, r *http.Request) {
	    identity, err := jsonwebtoken.IdentityFromContext(r.Context())
	    if err != nil {
	        http.Error(w, "unauthenticated", http.StatusUnauthorized)
	        return
	    }
	    fmt.Fprintf(w, "hello %s", identity.Name())
	}

# Errors

A request without a token is rejected with ErrJWTMissing, and one whose token
does not validate with an error that Is ErrJWTInvalid. The latter unwraps to
the *tokenerr.Error describing the failure:

	func onError(w http.ResponseWriter, r *http.Request, err error) {
	    if errors.Is(err, tokenerr.ErrExpired) {
	        // ...
	    }
	    jsonwebtoken.DefaultErrorHandler(w, r, err)
	}

DefaultErrorHandler answers 400, 401 or 500 with a JSON body such as

	{"message":"JWT is invalid.","code":"token_expired"}

# Token extraction

AuthHeaderTokenExtractor, the default, reads "Authorization: Bearer <token>".
CookieTokenExtractor, ParameterTokenExtractor and MultiTokenExtractor cover
other transports; any func(*http.Request) (string, error) works.
*/
package jsonwebtoken
