package gateway

import (
	"math/rand/v2"
	"strings"
)

// GenerateCPF returns random 11 digit CPF with valid check digits
func GenerateCPF() string {
	digits := make([]int, 0, 11)
	for range 9 {
		digits = append(digits, rand.IntN(10))
	}
	digits = append(digits, cpfCheckDigit(digits))
	digits = append(digits, cpfCheckDigit(digits))

	var b strings.Builder
	for _, d := range digits {
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}

// ValidCPF reports whether s is 11 digits with correct check digits
func ValidCPF(s string) bool {
	if len(s) != 11 {
		return false
	}

	digits := make([]int, 0, 11)
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
		digits = append(digits, int(r-'0'))
	}

	return cpfCheckDigit(digits[:9]) == digits[9] && cpfCheckDigit(digits[:10]) == digits[10]
}

// Weights run from len+1 down to 2
func cpfCheckDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for i, d := range digits {
		sum += d * (weight - i)
	}

	rest := 11 - sum%11
	if rest >= 10 {
		return 0
	}
	return rest
}
