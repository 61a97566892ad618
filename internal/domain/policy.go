package domain

// JukeboxPolicy decides what the jukebox plays after a track completes.
type JukeboxPolicy int

const (
	PolicyOnce JukeboxPolicy = iota
	PolicyRepeat
	PolicySequential
	PolicyShuffle

	policyCount = 4
)

var policyMeta = [policyCount]struct{ name, icon string }{
	{"Once", "1️⃣"},
	{"Repeat", "🔁"},
	{"In-Order", "➡️"},
	{"Shuffle", "🔀"},
}

// Valid reports whether p is one of the four known policies.
func (p JukeboxPolicy) Valid() bool { return p >= 0 && p < policyCount }

// Next returns the policy after p, wrapping around.
func (p JukeboxPolicy) Next() JukeboxPolicy {
	if !p.Valid() {
		return PolicyOnce
	}
	return (p + 1) % policyCount
}

func (p JukeboxPolicy) String() string {
	if !p.Valid() {
		return "Unknown"
	}
	return policyMeta[p].name
}

func (p JukeboxPolicy) Icon() string {
	if !p.Valid() {
		return "?"
	}
	return policyMeta[p].icon
}
