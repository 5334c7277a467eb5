package engine

import "github.com/sqldef/powerquery/table"

// PrivacyLevel is Power Query's three-tier data classification, the
// basis of spec §5's formula firewall: which sources may be combined
// by the same merge/append step.
type PrivacyLevel int

const (
	PrivacyPublic PrivacyLevel = iota
	PrivacyOrganizational
	PrivacyPrivate
)

func (l PrivacyLevel) String() string {
	switch l {
	case PrivacyPublic:
		return "public"
	case PrivacyOrganizational:
		return "organizational"
	default:
		return "private"
	}
}

// PrivacyPolicy maps a source_id to its declared privacy level. A
// source_id absent from a non-empty policy defaults to PrivacyPrivate,
// the most restrictive level, so an unclassified source never silently
// combines with anything else. An empty (or nil) policy turns the
// firewall check off: every combination is allowed.
type PrivacyPolicy map[string]PrivacyLevel

func (p PrivacyPolicy) levelOf(sourceID string) PrivacyLevel {
	if lvl, ok := p[sourceID]; ok {
		return lvl
	}
	return PrivacyPrivate
}

// provenance is spec §5's "per-table source_id set... a side table keyed
// by a weak identity of the physical table". It lives on the Engine
// (created on first use) and is shared by every Execute call made
// through that Engine; entries are never removed.
type provenance struct {
	sets map[table.Table][]string
}

func newProvenance() *provenance {
	return &provenance{sets: map[table.Table][]string{}}
}

// tag records t as carrying data from sourceID, used when a source
// table is first loaded (spec §4.8 step 4, "tag the resulting table
// with the source's source_id").
func (p *provenance) tag(t table.Table, sourceID string) {
	p.sets[t] = appendUniqueID(p.sets[t], sourceID)
}

func (p *provenance) sourcesOf(t table.Table) []string {
	return p.sets[t]
}

// combine folds every input table's source_id set into result's own
// entry. Mutation is monotonically additive, never subtractive: a
// result never carries fewer sources than its inputs.
func (p *provenance) combine(result table.Table, inputs ...table.Table) {
	for _, in := range inputs {
		for _, id := range p.sets[in] {
			p.tag(result, id)
		}
	}
}

func appendUniqueID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// checkFirewall reports whether combining a table carrying left's
// source_ids with one carrying right's is permitted: public data mixes
// with anything, organizational data mixes with organizational (and
// public), and private data never mixes with a different source at all
// (including another private source), mirroring Power Query's
// documented firewall rules. Combining a source with itself is always
// allowed regardless of level.
func checkFirewall(policy PrivacyPolicy, left, right []string) (bool, string) {
	if len(policy) == 0 {
		return true, ""
	}
	for _, l := range left {
		for _, r := range right {
			if l == r {
				continue
			}
			ll, rl := policy.levelOf(l), policy.levelOf(r)
			if ll == PrivacyPublic || rl == PrivacyPublic {
				continue
			}
			if ll == PrivacyPrivate || rl == PrivacyPrivate || ll != rl {
				return false, l + " (" + ll.String() + ") cannot combine with " + r + " (" + rl.String() + ")"
			}
		}
	}
	return true, ""
}
