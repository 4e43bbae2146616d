package catalog

import (
	"fmt"
	"strings"
)

// PermissionKey is a validated permission identifier such as "finance.view".
// Storage keeps plain strings; the typed wrapper makes typos fail at the API
// boundary instead of silently resolving to deny.
type PermissionKey string

// ActionKey is a validated action identifier such as "farms.edit".
type ActionKey string

// ParsePermissionKey validates and returns a PermissionKey.
func ParsePermissionKey(raw string) (PermissionKey, error) {
	if err := validateKey(raw); err != nil {
		return "", fmt.Errorf("catalog: permission key %q: %w", raw, err)
	}
	return PermissionKey(raw), nil
}

// ParseActionKey validates and returns an ActionKey.
func ParseActionKey(raw string) (ActionKey, error) {
	if err := validateKey(raw); err != nil {
		return "", fmt.Errorf("catalog: action key %q: %w", raw, err)
	}
	return ActionKey(raw), nil
}

// MustPermissionKey panics on invalid input. Intended for package-level
// constants only.
func MustPermissionKey(raw string) PermissionKey {
	key, err := ParsePermissionKey(raw)
	if err != nil {
		panic(err)
	}
	return key
}

// MustActionKey panics on invalid input. Intended for package-level constants only.
func MustActionKey(raw string) ActionKey {
	key, err := ParseActionKey(raw)
	if err != nil {
		panic(err)
	}
	return key
}

func (k PermissionKey) String() string { return string(k) }

func (k ActionKey) String() string { return string(k) }

// validateKey enforces the dotted lowercase key format shared by permissions
// and actions: two or more segments of [a-z0-9_], joined with dots.
func validateKey(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty key")
	}
	segments := strings.Split(raw, ".")
	if len(segments) < 2 {
		return fmt.Errorf("want at least two dotted segments")
	}
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("empty segment")
		}
		for _, r := range seg {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
				return fmt.Errorf("invalid character %q", r)
			}
		}
	}
	return nil
}
