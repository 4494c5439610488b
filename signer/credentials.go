// Package signer authenticates outbound exchange requests.
package signer

import (
	"fmt"
	"sort"
	"strings"

	"tradebridge/models"
)

// Credentials are named secrets such as API keys or private keys.
type Credentials map[string]string

// Get returns the named secret or "".
func (c Credentials) Get(name string) string {
	return strings.TrimSpace(c[name])
}

// Require fails with ErrMissingCredential naming the first absent secret.
func (c Credentials) Require(names ...string) error {
	for _, name := range names {
		if c.Get(name) == "" {
			return fmt.Errorf("%w: %s", models.ErrMissingCredential, name)
		}
	}
	return nil
}

// String lists the credential names only.
func (c Credentials) String() string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name+"=***")
	}
	sort.Strings(names)
	return "{" + strings.Join(names, " ") + "}"
}

func (c Credentials) GoString() string {
	return c.String()
}
