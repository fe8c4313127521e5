// Package token provides random token generation and hashing utilities.
//
// Tokens are generated from crypto/rand and Base64 RawURL encoded so they
// are safe in URLs and HTTP headers. Hashing uses SHA-256 with hex output
// and constant-time comparison; the tower stores hashes, never the raw
// values.
package token
