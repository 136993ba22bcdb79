// Package nanoid generates compact opaque identifiers.
package nanoid

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	defaultSize = 16

	// PrimaryKeySize is the length of generated primary keys.
	PrimaryKeySize = 16

	lowercase      = "abcdefghijklmnopqrstuvwxyz"
	uppercase      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	number         = "0123456789"
	lowerUpper     = lowercase + uppercase
	numLowerUpper  = number + lowerUpper
	primaryKeyChar = numLowerUpper
)

func getSize(l ...int) int {
	size := defaultSize
	if len(l) > 0 {
		size = l[0]
	}
	return size
}

// Must generate optional length nanoid
func Must(l ...int) string {
	size := getSize(l...)
	return gonanoid.Must(size)
}

// String generate optional length nanoid, use const by default
func String(l ...int) string {
	size := getSize(l...)
	return gonanoid.MustGenerate(lowerUpper, size)
}

// Lower generate optional length nanoid, use const by default
func Lower(l ...int) string {
	size := getSize(l...)
	return gonanoid.MustGenerate(lowercase, size)
}

// Number generate optional length nanoid, use const by default
func Number(l ...int) string {
	size := getSize(l...)
	return gonanoid.MustGenerate(number, size)
}

// PrimaryKey generate primary key
func PrimaryKey(l ...int) func() string {
	size := PrimaryKeySize
	if len(l) > 0 {
		size = l[0]
	}
	return func() string {
		return gonanoid.MustGenerate(primaryKeyChar, size)
	}
}

// IsPrimaryKey verify is primary key
func IsPrimaryKey(id string) bool {
	if id == "" {
		return false
	}
	if len(id) != PrimaryKeySize {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune(primaryKeyChar, r) {
			return false
		}
	}
	return true
}
