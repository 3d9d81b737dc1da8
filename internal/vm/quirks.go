package vm

import (
	"fmt"
	"sort"
)

// Quirks selects between the historical behaviors of instructions whose
// semantics differ between CHIP-8 interpreters.
type Quirks struct {
	// 8xy6/8xyE shift Vy into Vx instead of shifting Vx in place.
	ShiftUsesVY bool

	// 8xy1/8xy2/8xy3 set VF to 0.
	LogicResetsVF bool

	// Fx55/Fx65 leave I pointing past the last register (I += x + 1).
	LoadStoreIncrementsI bool

	// Bnnn jumps to nnn + Vx (x being the high nibble of nnn) instead of
	// nnn + V0.
	JumpUsesVX bool
}

var (
	ModernQuirks = Quirks{}

	// CosmacQuirks matches the 1977 COSMAC VIP interpreter.
	CosmacQuirks = Quirks{
		ShiftUsesVY:          true,
		LogicResetsVF:        true,
		LoadStoreIncrementsI: true,
	}
)

var quirkProfiles = map[string]Quirks{
	"modern": ModernQuirks,
	"cosmac": CosmacQuirks,
}

// QuirksByName looks up a named quirk profile.
func QuirksByName(name string) (Quirks, error) {
	q, ok := quirkProfiles[name]
	if !ok {
		return Quirks{}, fmt.Errorf("unknown quirk profile %q (available: %v)", name, QuirkProfiles())
	}
	return q, nil
}

// QuirkProfiles lists the profile names in sorted order.
func QuirkProfiles() []string {
	names := make([]string, 0, len(quirkProfiles))
	for name := range quirkProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
