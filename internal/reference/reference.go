// Package reference generates human-readable record references such as tracking numbers,
// ticket numbers and booking references.
package reference

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"strings"
	"time"
)

const (
	PrefixOrder   = "ORD"
	PrefixTicket  = "TKT"
	PrefixBooking = "ACC"

	alphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLen   = 5
	tokenLen    = 10
	dateLayout  = "20060102"
	MaxAttempts = 3
)

// Generator builds {prefix}{YYYYMMDD}-{RAND} references. References are identifiers, not
// secrets, so the suffix uses a non-cryptographic source. Verification tokens are secrets and
// use crypto/rand.
type Generator struct {
	now  func() time.Time
	rand func(n int) int
}

func New() *Generator {
	return &Generator{
		now:  time.Now,
		rand: mrand.IntN,
	}
}

// NewWith injects the clock and random source, mainly for tests.
func NewWith(now func() time.Time, randIntN func(n int) int) *Generator {
	g := New()
	if now != nil {
		g.now = now
	}
	if randIntN != nil {
		g.rand = randIntN
	}
	return g
}

func (g *Generator) Generate(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(dateLayout) + 1 + suffixLen)
	b.WriteString(prefix)
	b.WriteString(g.now().UTC().Format(dateLayout))
	b.WriteByte('-')
	for i := 0; i < suffixLen; i++ {
		b.WriteByte(alphabet[g.rand(len(alphabet))])
	}
	return b.String()
}

// Token appends a secret suffix to base, producing a value that cannot be derived from the
// visible reference.
func (g *Generator) Token(base string) (string, error) {
	suffix := make([]byte, tokenLen)
	max := big.NewInt(int64(len(alphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return base + "-" + string(suffix), nil
}

// Valid reports whether s has the shape of a reference with the given prefix. Used to reject
// malformed lookups early without revealing anything to the caller.
func Valid(prefix, s string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	rest := s[len(prefix):]
	if len(rest) < len(dateLayout)+2 || rest[len(dateLayout)] != '-' {
		return false
	}
	if _, err := time.Parse(dateLayout, rest[:len(dateLayout)]); err != nil {
		return false
	}
	suffix := rest[len(dateLayout)+1:]
	if len(suffix) < 4 || len(suffix) > 6 {
		return false
	}
	for _, c := range suffix {
		if !strings.ContainsRune(alphabet, c) {
			return false
		}
	}
	return true
}
