package te

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// Signer produces the X-Signature value for Ticket Evolution requests.
//
// The signed string is "<METHOD> <host><path>?<sorted query>". The '?' is
// mandatory even with no parameters, and the host must be included; TE
// returns 401 if either is missing.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// CanonicalString builds the exact string TE expects to be signed.
// path must carry the version prefix (e.g. "/v9/listings"). Query keys are
// sorted lexicographically; keys and values are percent-encoded with spaces
// as %20, never '+'.
func CanonicalString(method, host, path string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var q strings.Builder
	for i, k := range keys {
		if i > 0 {
			q.WriteByte('&')
		}
		q.WriteString(encodeComponent(k))
		q.WriteByte('=')
		q.WriteString(encodeComponent(params[k]))
	}

	return method + " " + host + path + "?" + q.String()
}

// Sign returns the base64 HMAC-SHA256 signature of the canonical string.
func (s *Signer) Sign(method, host, path string, params map[string]string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(CanonicalString(method, host, path, params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
