package agent

import (
	"fmt"
	"strings"
)

// Tier selects the model size an agent runs on.
type Tier string

const (
	TierSmall Tier = "SMALL"
	TierBig   Tier = "BIG"
)

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierSmall:
		return TierSmall, nil
	case TierBig:
		return TierBig, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool { return t == TierSmall || t == TierBig }

// String implements fmt.Stringer.
func (t Tier) String() string { return string(t) }

// Escalate applies a leading tier token to command. A "+" while SMALL
// switches to BIG and a "-" while BIG switches to SMALL; the token and the
// whitespace around it are stripped. Any other combination returns the
// trimmed command unchanged.
func Escalate(tier Tier, command string) (Tier, string) {
	cmd := strings.TrimSpace(command)

	switch {
	case tier == TierSmall && strings.HasPrefix(cmd, "+"):
		return TierBig, strings.TrimSpace(cmd[1:])
	case tier == TierBig && strings.HasPrefix(cmd, "-"):
		return TierSmall, strings.TrimSpace(cmd[1:])
	}

	return tier, cmd
}
