/**
 * @description
 * This file defines the pluggable authorization policy for trigger invocations.
 * Deciding that an insured condition has occurred is an external concern
 * (oracle, designated operator, multi-party process); the service only checks
 * that the caller is an approved trigger source before settlement runs.
 */

package app

import (
	"context"
	"fmt"
	"strings"
)

// TriggerAuthorizer decides whether a caller may invoke payouts.
type TriggerAuthorizer interface {
	Authorize(ctx context.Context, caller string) error
}

// AllowListAuthorizer authorizes a fixed set of trigger-source account ids,
// configured at startup. This mirrors the original deployment, which bound a
// single designated oracle address.
type AllowListAuthorizer struct {
	sources map[string]struct{}
}

// NewAllowListAuthorizer builds an authorizer from a list of account ids.
// Blank entries are dropped.
func NewAllowListAuthorizer(sources []string) *AllowListAuthorizer {
	allowed := make(map[string]struct{}, len(sources))
	for _, source := range sources {
		source = strings.TrimSpace(source)
		if source == "" {
			continue
		}
		allowed[source] = struct{}{}
	}
	return &AllowListAuthorizer{sources: allowed}
}

// Authorize returns ErrUnauthorized unless the caller is on the allow-list.
func (a *AllowListAuthorizer) Authorize(ctx context.Context, caller string) error {
	if _, ok := a.sources[strings.TrimSpace(caller)]; !ok {
		return fmt.Errorf("%w: %q is not a configured trigger source", ErrUnauthorized, caller)
	}
	return nil
}
