package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"Tuition":              "tuition",
		"  TUITION FEES ":      "tuition",
		"Billed: Tuition":      "tuition",
		"service: Transport":   "transport",
		"Service:Boarding Fee": "boarding",
		"Brought Forward":      "brought forward",
		"":                     "",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeKey(input), input)
	}
}

func TestKeysMatchOrder(t *testing.T) {
	// Exact normalized equality.
	assert.True(t, KeysMatch("Tuition Fees", "tuition"))
	// Substring in either direction.
	assert.True(t, KeysMatch("Term 1 Tuition", "tuition"))
	assert.True(t, KeysMatch("uniform", "Uniform (full set)"))
	// No match.
	assert.False(t, KeysMatch("Transport", "tuition"))
	// Empty keys never match anything.
	assert.False(t, KeysMatch("", "tuition"))
	assert.False(t, KeysMatch("fees", "tuition"))
}

func TestIsClearanceKey(t *testing.T) {
	for _, key := range []string{"Tuition", "tuition fees", "Billed: Tuition", "Brought Forward", "BF", "b/f", "Arrears", "Prev Balance", "Previous Balance"} {
		assert.True(t, isClearanceKey(key), key)
	}
	for _, key := range []string{"service: Transport", "Boarding", "Uniform", ""} {
		assert.False(t, isClearanceKey(key), key)
	}
}
