package aegisvault

import (
	"math"
	"unicode"
	"unicode/utf8"
)

// Strength is a coarse password strength rating
type Strength int

const (
	VeryWeak Strength = iota
	Weak
	Fair
	Strong
	VeryStrong
)

func (s Strength) String() string {
	switch s {
	case VeryWeak:
		return "Very Weak"
	case Weak:
		return "Weak"
	case Fair:
		return "Fair"
	case Strong:
		return "Strong"
	case VeryStrong:
		return "Very Strong"
	default:
		return "unknown"
	}
}

type charClasses struct {
	lower, upper, digit, special bool
}

func classify(runes []rune) charClasses {
	var c charClasses
	for _, r := range runes {
		switch {
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsDigit(r):
			c.digit = true
		default:
			c.special = true
		}
	}
	return c
}

func (c charClasses) count() int {
	n := 0
	for _, b := range []bool{c.lower, c.upper, c.digit, c.special} {
		if b {
			n++
		}
	}
	return n
}

// EvaluatePassword scores length and character variety, penalizing runs of a
// repeated character and three-character ascending or descending sequences
func EvaluatePassword(password []byte) Strength {
	if len(password) == 0 || !utf8.Valid(password) {
		return VeryWeak
	}
	runes := decodeRunes(password)
	defer clear(runes)

	score := 0
	for _, n := range []int{8, 12, 16} {
		if len(runes) >= n {
			score++
		}
	}
	score += classify(runes).count()
	if hasRepeat(runes) {
		score--
	}
	if hasSequence(runes) {
		score--
	}

	switch {
	case score <= 1:
		return VeryWeak
	case score <= 3:
		return Weak
	case score <= 5:
		return Fair
	case score <= 6:
		return Strong
	default:
		return VeryStrong
	}
}

// Entropy estimates password entropy in bits as length * log2(pool), where the
// pool sums 26 lower, 26 upper, 10 digit and 32 special characters for each
// class present
func Entropy(password []byte) float64 {
	if len(password) == 0 {
		return 0
	}
	runes := decodeRunes(password)
	defer clear(runes)
	c := classify(runes)

	pool := 0
	if c.lower {
		pool += 26
	}
	if c.upper {
		pool += 26
	}
	if c.digit {
		pool += 10
	}
	if c.special {
		pool += 32
	}
	return float64(len(runes)) * math.Log2(float64(pool))
}

// decodeRunes avoids the string conversion so the copy can be cleared
func decodeRunes(b []byte) []rune {
	runes := make([]rune, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		runes = append(runes, r)
		b = b[size:]
	}
	return runes
}

func hasRepeat(runes []rune) bool {
	for i := 0; i+2 < len(runes); i++ {
		if runes[i] == runes[i+1] && runes[i] == runes[i+2] {
			return true
		}
	}
	return false
}

func hasSequence(runes []rune) bool {
	lower := make([]rune, len(runes))
	defer clear(lower)
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}
	for i := 0; i+2 < len(lower); i++ {
		a, b, c := lower[i], lower[i+1], lower[i+2]
		if b == a+1 && c == b+1 {
			return true
		}
		if b == a-1 && c == b-1 {
			return true
		}
	}
	return false
}
