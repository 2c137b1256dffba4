package btce

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"btce_go/internal/domain"
)

// Param is one call-specific form field.
type Param struct {
	Name  string
	Value string
}

// Params keeps form fields in insertion order. The exchange signs the exact
// body bytes, so url.Values (which sorts keys) cannot be used.
type Params []Param

// Add appends a field and returns the extended list.
func (p Params) Add(name, value string) Params {
	return append(p, Param{Name: name, Value: value})
}

// AddInt appends an integer field.
func (p Params) AddInt(name string, value int64) Params {
	return p.Add(name, strconv.FormatInt(value, 10))
}

// Encode renders the fields as "a=1&b=2" without a leading separator.
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.Value))
	}
	return b.String()
}

// SignedRequest is a ready-to-send private API call.
type SignedRequest struct {
	Body      string
	Key       string
	Signature string
}

// Headers returns the HTTP headers the private endpoint expects.
func (r *SignedRequest) Headers() map[string]string {
	return map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Key":          r.Key,
		"Sign":         r.Signature,
	}
}

// Signer handles private API authentication signatures
type Signer struct {
	creds domain.Credentials
}

// NewSigner creates a new Signer instance
func NewSigner(creds domain.Credentials) *Signer {
	return &Signer{creds: creds}
}

// Sign builds the form body "method=..&nonce=..&extras" and signs it.
// Placeholder detection belongs to the caller; only empty credentials fail here.
func (s *Signer) Sign(method string, nonce int64, params Params) (*SignedRequest, error) {
	if s.creds.Key == "" || len(s.creds.Secret) == 0 {
		return nil, domain.ErrMissingCredentials
	}

	body := Params{{Name: "method", Value: method}}.AddInt("nonce", nonce)
	body = append(body, params...)
	encoded := body.Encode()

	return &SignedRequest{
		Body:      encoded,
		Key:       s.creds.Key,
		Signature: computeHmacSha512(encoded, s.creds.Secret),
	}, nil
}

func computeHmacSha512(message string, secret []byte) string {
	h := hmac.New(sha512.New, secret)
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
