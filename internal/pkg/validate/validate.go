package validate

import "strings"

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// MaxBytes reports whether value fits in n bytes.
func MaxBytes(value string, n int) bool {
	return len(value) <= n
}
