// Package auth identifies callers from bearer tokens.
//
// A caller is the "sub" claim of an HMAC-signed JWT. Handlers read the
// caller with authctx.CallerID; when authentication is disabled every
// request runs as Anonymous.
//
//	auth:
//	  enabled: true
//	  jwt:
//	    secret: "change-me"
//	    issuer: "flowkit"
package auth
