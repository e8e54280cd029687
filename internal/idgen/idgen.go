// Package idgen handles short code generation and allocation.
package idgen

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultCodeLength is the default length for generated short codes.
const DefaultCodeLength = 6

// FallbackCodeLength is used once the default-length attempts are exhausted.
const FallbackCodeLength = 10

// Generator produces candidate short codes.
type Generator interface {
	// Generate returns a code of exactly length characters.
	Generate(length int) (string, error)
}

// RandomGenerator draws codes uniformly from the Base62 alphabet using a
// cryptographically secure source, so codes are not enumerable.
type RandomGenerator struct{}

// NewRandomGenerator creates a new RandomGenerator.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// Generate creates a random Base62 code of the given length.
// Non-positive lengths fall back to DefaultCodeLength.
func (g *RandomGenerator) Generate(length int) (string, error) {
	if length < 1 {
		length = DefaultCodeLength
	}
	return gonanoid.Generate(Alphabet, length)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(length int) (string, error)

// Generate calls f(length).
func (f GeneratorFunc) Generate(length int) (string, error) {
	return f(length)
}
