package idgen

// Alphabet holds the 62 symbols short codes are drawn from: 0-9, a-z, A-Z.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// valid marks the bytes that belong to Alphabet.
var valid [256]bool

func init() {
	for i := 0; i < len(Alphabet); i++ {
		valid[Alphabet[i]] = true
	}
}

// IsValid checks if a string contains only Base62 characters.
func IsValid(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !valid[s[i]] {
			return false
		}
	}
	return true
}
