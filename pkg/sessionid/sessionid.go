// Package sessionid issues and checks the opaque cart session identifiers
// handed to browsers.
package sessionid

import (
	"fmt"
	"regexp"

	"github.com/jaevor/go-nanoid"
)

const Length = 21

// nanoid's URL-safe alphabet; longer ids from older clients are tolerated.
var validRe = regexp.MustCompile(`^[A-Za-z0-9_-]{16,64}$`)

// Generator returns a fresh session id on every call.
type Generator func() string

// New builds a nanoid-backed generator.
func New() (Generator, error) {
	gen, err := nanoid.Standard(Length)
	if err != nil {
		return nil, fmt.Errorf("init session id generator: %w", err)
	}
	return Generator(gen), nil
}

// Valid reports whether id looks like an id this service could have issued.
func Valid(id string) bool {
	return validRe.MatchString(id)
}
