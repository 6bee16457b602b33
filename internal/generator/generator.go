// Package generator synthesizes random passwords and passphrases using a
// cryptographically secure randomness source.
package generator

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/vaultec/vaultcore/internal/errs"
)

const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits    = "0123456789"
	symbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"
	ambiguous = "0O1lI"
)

const (
	// MinLength and MaxLength bound the target length.
	MinLength = 8
	MaxLength = 64
)

var words = []string{
	"correct", "horse", "battery", "staple", "dragon", "monkey", "pizza", "coffee",
	"laptop", "sunset", "ocean", "mountain", "forest", "river", "cloud", "thunder",
	"lightning", "rainbow", "galaxy", "planet", "comet", "meteor", "asteroid", "nebula",
	"quantum", "photon", "electron", "neutron", "proton", "atom", "molecule", "crystal",
}

// Options configures password synthesis.
type Options struct {
	Length           int
	Lowercase        bool
	Uppercase        bool
	Digits           bool
	Symbols          bool
	ExcludeAmbiguous bool
	UsePassphrase    bool
}

// DefaultOptions returns the standard generator configuration.
func DefaultOptions() Options {
	return Options{
		Length:    16,
		Lowercase: true,
		Uppercase: true,
		Digits:    true,
		Symbols:   true,
	}
}

// Generate produces a password (or passphrase) per opts.
func Generate(opts Options) (string, error) {
	if opts.Length < MinLength || opts.Length > MaxLength {
		return "", fmt.Errorf("%w: length must be in [%d,%d], got %d", errs.ErrValidation, MinLength, MaxLength, opts.Length)
	}
	if opts.UsePassphrase {
		return generatePassphrase(opts.Length)
	}
	return generateCharset(opts)
}

// class pairs an enabled character class with its alphabet (possibly filtered).
type class struct {
	chars string
}

func generateCharset(opts Options) (string, error) {
	var enabled []class
	add := func(on bool, chars string) {
		if !on {
			return
		}
		if opts.ExcludeAmbiguous {
			chars = stripAmbiguous(chars)
		}
		enabled = append(enabled, class{chars: chars})
	}
	add(opts.Lowercase, lowercase)
	add(opts.Uppercase, uppercase)
	add(opts.Digits, digits)
	add(opts.Symbols, symbols)

	charset := ""
	if len(enabled) == 0 {
		// No class selected: fall back to a sane union, but force-fix nothing.
		charset = lowercase + uppercase + digits
		if opts.ExcludeAmbiguous {
			charset = stripAmbiguous(charset)
		}
	} else {
		var union strings.Builder
		for _, cl := range enabled {
			union.WriteString(cl.chars)
		}
		charset = union.String()
	}

	out := make([]byte, opts.Length)
	for i := range out {
		idx, err := randInt(len(charset))
		if err != nil {
			return "", err
		}
		out[i] = charset[idx]
	}

	// Force one character per enabled class not represented in the draw.
	// Guarantees class coverage at a small entropy cost; kept for compatibility.
	for _, cl := range enabled {
		if strings.ContainsAny(string(out), cl.chars) {
			continue
		}
		pos, err := randInt(len(out))
		if err != nil {
			return "", err
		}
		idx, err := randInt(len(cl.chars))
		if err != nil {
			return "", err
		}
		out[pos] = cl.chars[idx]
	}
	return string(out), nil
}

func generatePassphrase(length int) (string, error) {
	n := length / 4
	if n < 3 {
		n = 3
	}
	if n > 8 {
		n = 8
	}
	picked := make([]string, n)
	for i := range picked {
		idx, err := randInt(len(words))
		if err != nil {
			return "", err
		}
		w := words[idx]
		picked[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(picked, "-"), nil
}

func stripAmbiguous(chars string) string {
	var b strings.Builder
	for _, r := range chars {
		if !strings.ContainsRune(ambiguous, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// randInt returns a uniform random int in [0,n).
func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
