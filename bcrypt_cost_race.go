//go:build race

package membership

import "golang.org/x/crypto/bcrypt"

// Race builds hash with the minimum cost so suites stay inside their timeouts.
func passwordHashCost() int {
	return bcrypt.MinCost
}
