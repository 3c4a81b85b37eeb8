// Package token mints the capability strings that gate every resource.
//
// All strings use the 64 symbol URL-safe alphabet [A-Za-z0-9_-] and are drawn
// from crypto/rand, so each character carries 6 bits of entropy.
package token

import (
	"crypto/rand"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

const (
	SurveyIDLen      = 10
	AdminTokenLen    = 32 // 192 bits
	AnonymousIDLen   = 16
	ResponseTokenLen = 24 // 144 bits
	QuestionIDLen    = 8
)

// Generator mints fresh identifiers.
type Generator interface {
	SurveyID() string
	AdminToken() string
	AnonymousID() string
	ResponseToken() string
	QuestionID() string
}

// Random is the production Generator.
var Random Generator = random{}

type random struct{}

func (random) SurveyID() string      { return New(SurveyIDLen) }
func (random) AdminToken() string    { return New(AdminTokenLen) }
func (random) AnonymousID() string   { return New(AnonymousIDLen) }
func (random) ResponseToken() string { return New(ResponseTokenLen) }
func (random) QuestionID() string    { return New(QuestionIDLen) }

// New returns n random characters from the URL-safe alphabet.
// It panics if the system random source fails: a predictable token is worse than no token.
func New(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("token: crypto/rand failed: " + err.Error())
	}
	for i, b := range buf {
		// len(alphabet) == 64, masking keeps the distribution uniform
		buf[i] = alphabet[b&63]
	}
	return string(buf)
}

// Valid reports whether s has length n and uses only the token alphabet.
func Valid(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

func ValidSurveyID(s string) bool      { return Valid(s, SurveyIDLen) }
func ValidAdminToken(s string) bool    { return Valid(s, AdminTokenLen) }
func ValidResponseToken(s string) bool { return Valid(s, ResponseTokenLen) }
