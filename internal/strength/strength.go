// Package strength scores plaintext password quality. Pure and deterministic.
package strength

// Strength is the structured result of a quality check.
type Strength struct {
	Class      int    // 0..4
	Label      string // "No password" .. "Very Strong"
	Color      string // display color token
	Percentage int    // Class mapped to a fixed step
}

// MaxClass is the top strength class.
const MaxClass = 4

var classes = [MaxClass + 1]Strength{
	{Class: 0, Label: "Very Weak", Color: "#ef4444", Percentage: 20},
	{Class: 1, Label: "Weak", Color: "#f97316", Percentage: 40},
	{Class: 2, Label: "Fair", Color: "#f59e0b", Percentage: 60},
	{Class: 3, Label: "Strong", Color: "#10b981", Percentage: 80},
	{Class: 4, Label: "Very Strong", Color: "#22c55e", Percentage: 100},
}

// Calculate scores a password with an additive checklist over length thresholds
// and character variety, capped at MaxClass. An empty password yields class 0
// with a distinct "No password" label. Never fails.
func Calculate(password string) Strength {
	if password == "" {
		return Strength{Class: 0, Label: "No password", Color: "#9ca3af", Percentage: 0}
	}

	var lower, upper, digit, symbol bool
	n := 0
	for _, r := range password {
		n++
		// ASCII classes only; any other rune counts as a symbol
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}

	score := 0
	if n >= 8 {
		score++
	}
	if n >= 12 {
		score++
	}
	if n >= 16 {
		score++
	}
	if n >= 20 {
		score++
	}
	if lower && upper {
		score++
	}
	if digit {
		score++
	}
	if symbol {
		score++
	}
	if score > MaxClass {
		score = MaxClass
	}
	return classes[score]
}

// PersistScore maps a strength class to the 0-100 integer stored on a
// credential: 0->20, 1->40, 2->70, 3 and above->100. Monotone in class.
func PersistScore(class int) int {
	switch {
	case class <= 0:
		return 20
	case class == 1:
		return 40
	case class == 2:
		return 70
	default:
		return 100
	}
}

// Requirements reports which individual checks a password satisfies.
// Drives per-rule feedback in hosting UIs.
type Requirements struct {
	MinLength    bool
	HasLowercase bool
	HasUppercase bool
	HasDigit     bool
	HasSymbol    bool
}

// Check evaluates the individual requirement checks for a password.
func Check(password string) Requirements {
	var req Requirements
	n := 0
	for _, r := range password {
		n++
		switch {
		case r >= 'a' && r <= 'z':
			req.HasLowercase = true
		case r >= 'A' && r <= 'Z':
			req.HasUppercase = true
		case r >= '0' && r <= '9':
			req.HasDigit = true
		default:
			req.HasSymbol = true
		}
	}
	req.MinLength = n >= 8
	return req
}
