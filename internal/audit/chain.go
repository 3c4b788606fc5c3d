package audit

// Verification is the result of a chain scan.
type Verification struct {
	Valid bool
	// BreakAt is the index of the first entry failing either its own hash or
	// its link to the predecessor. -1 when the chain is fully valid.
	BreakAt int
	Checked int
}

// VerifyChain recomputes every entry hash and checks each previous-hash link.
// It detects field mutation, deletion, reordering, and insertion, reporting
// the first break point. An empty sequence is fully valid.
func VerifyChain(entries []Entry) Verification {
	for i, e := range entries {
		computed, err := ComputeHash(e)
		if err != nil || computed != e.EntryHash {
			return Verification{Valid: false, BreakAt: i, Checked: i}
		}
		if i == 0 {
			// A full-chain scan starts at the genesis entry, which carries no
			// predecessor. A previous-hash here means the real head was
			// removed.
			if e.PrevHash != nil {
				return Verification{Valid: false, BreakAt: 0}
			}
			continue
		}
		if e.PrevHash == nil || *e.PrevHash != entries[i-1].EntryHash {
			return Verification{Valid: false, BreakAt: i, Checked: i}
		}
	}
	return Verification{Valid: true, BreakAt: -1, Checked: len(entries)}
}
