package notifier

import (
	"fmt"
	"strings"

	"github.com/nspcc-dev/eventbridge/pkg/encoding/address"
)

// Registration describes interest in an event kind. A zero Account means all
// accounts, it's the only valid value for families other than Ledger.
type Registration struct {
	Kind    EventKind
	Account uint64
}

// String returns the token form of the registration.
func (r Registration) String() string {
	if r.Account == 0 {
		return r.Kind.String()
	}
	return r.Kind.String() + "." + address.AccountToString(r.Account)
}

// normalize drops account scoping for families that don't support it.
func (r Registration) normalize() Registration {
	if !r.Kind.Family().Scoped() {
		r.Account = 0
	}
	return r
}

// ParseRegistration parses an event token: "Family.Member" or, for the
// Ledger family, "Ledger.Member.Account" where Account is either an address
// or a decimal id.
func ParseRegistration(token string) (Registration, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Registration{}, fmt.Errorf("%w: %q", ErrMalformedEventToken, token)
	}
	for _, p := range parts {
		if p == "" {
			return Registration{}, fmt.Errorf("%w: %q", ErrMalformedEventToken, token)
		}
	}
	if !knownFamily(parts[0]) {
		return Registration{}, fmt.Errorf("%w: family %q", ErrUnknownEvent, parts[0])
	}
	kind, ok := lookupKind(parts[0], parts[1])
	if !ok {
		return Registration{}, fmt.Errorf("%w: %q", ErrUnknownEvent, parts[0]+"."+parts[1])
	}
	reg := Registration{Kind: kind}
	if len(parts) == 3 {
		if !kind.Family().Scoped() {
			return Registration{}, fmt.Errorf("%w: %s events can't be scoped to an account", ErrMalformedEventToken, kind.Family())
		}
		acc, err := address.ParseAccount(parts[2])
		if err != nil {
			return Registration{}, fmt.Errorf("%w: bad account %q: %w", ErrMalformedEventToken, parts[2], err)
		}
		reg.Account = acc
	}
	return reg, nil
}

// ParseRegistrations parses all tokens or fails on the first bad one. An
// empty list means the whole catalog, unscoped.
func ParseRegistrations(tokens []string) ([]Registration, error) {
	if len(tokens) == 0 {
		return allRegistrations(), nil
	}
	res := make([]Registration, 0, len(tokens))
	for _, t := range tokens {
		r, err := ParseRegistration(t)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

func allRegistrations() []Registration {
	kinds := Catalog()
	res := make([]Registration, len(kinds))
	for i, k := range kinds {
		res[i] = Registration{Kind: k}
	}
	return res
}
