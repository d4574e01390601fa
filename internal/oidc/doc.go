/*
Package oidc fetches the OpenID Connect discovery document of an issuer.

The document lives at a well-known path below the issuer:

	https://issuer.example.com/.well-known/openid-configuration

Only the fields needed to build a token validation configuration are read:
the issuer identifier and the jwks_uri. The issuer in the document is
checked against the expected issuer so that a redirected or spoofed document
cannot supply keys for another authority.
*/
package oidc
