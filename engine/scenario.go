package engine

// =============================================================================
// SCENARIO DIFF - Compare any scenario against the default plan
// =============================================================================
//
// The default scenario is the baseline. Its rules active at asOf are reduced
// to approximate monthly totals (ToMonthlyEquivalent) per kind. Any other
// scenario is compared against those totals and against the default's
// individual rules.
//
// Matching rules across scenarios:
//   - budget rules match on CategoryID (stable)
//   - forecast rules match on LineageID when both sides carry one, otherwise
//     on Description text. Renaming a rule without a lineage breaks the match
//     and it reads as "new".

// MonthlyTotals sums the monthly equivalents of the rules active at asOf.
func MonthlyTotals(rules []Rule, asOf Date) KindTotals {
	var totals KindTotals
	for _, r := range rules {
		if !r.ActiveOn(asOf) {
			continue
		}
		totals.Add(r.Kind, ToMonthlyEquivalent(r.AmountCents, r.Cadence))
	}
	return totals
}

// Identity is how a rule is recognised across scenarios.
type Identity struct {
	Kind        RuleKind
	CategoryID  CategoryID
	LineageID   string
	Description string
}

func IdentityOf(r Rule) Identity {
	return Identity{Kind: r.Kind, CategoryID: r.CategoryID, LineageID: r.LineageID, Description: r.Description}
}

// Matches reports whether other names the same plan entry as id.
func (id Identity) Matches(other Identity) bool {
	if id.Kind != other.Kind {
		return false
	}
	if id.Kind == KindBudget {
		return id.CategoryID == other.CategoryID
	}
	if id.LineageID != "" && other.LineageID != "" {
		return id.LineageID == other.LineageID
	}
	return id.Description == other.Description
}

// ScenarioDiff holds the default scenario's baseline.
type ScenarioDiff struct {
	DefaultID     ScenarioID
	ActiveID      ScenarioID
	AsOf          Date
	DefaultTotals KindTotals

	defaultRules []Rule
}

// NewScenarioDiff computes the baseline from the default scenario's rules.
func NewScenarioDiff(defaultScenario Scenario, defaultRules []Rule, activeID ScenarioID, asOf Date) *ScenarioDiff {
	active := make([]Rule, 0, len(defaultRules))
	for _, r := range defaultRules {
		if r.ActiveOn(asOf) {
			active = append(active, r)
		}
	}
	return &ScenarioDiff{
		DefaultID:     defaultScenario.ID,
		ActiveID:      activeID,
		AsOf:          asOf,
		DefaultTotals: MonthlyTotals(defaultRules, asOf),
		defaultRules:  active,
	}
}

// ViewingDefault is true when the active scenario is the baseline itself.
func (d *ScenarioDiff) ViewingDefault() bool {
	return d.ActiveID == d.DefaultID
}

// Delta returns current - default for the kind; always 0 on the default.
func (d *ScenarioDiff) Delta(kind TotalKind, current Cents) Cents {
	if d.ViewingDefault() {
		return 0
	}
	return current - d.DefaultTotals.Get(kind)
}

// DefaultAmount finds the monthly-equivalent amount of the first default
// rule matching identity.
func (d *ScenarioDiff) DefaultAmount(identity Identity) (Cents, bool) {
	for _, r := range d.defaultRules {
		if identity.Matches(IdentityOf(r)) {
			return ToMonthlyEquivalent(r.AmountCents, r.Cadence), true
		}
	}
	return 0, false
}

// IsDifferent reports whether currentAmount (monthly equivalent) differs from
// the default's amount for identity. An identity absent from the default is
// new, hence different.
func (d *ScenarioDiff) IsDifferent(identity Identity, currentAmount Cents) bool {
	if d.ViewingDefault() {
		return false
	}
	base, ok := d.DefaultAmount(identity)
	if !ok {
		return true
	}
	return base != currentAmount
}

// RuleDiffers is IsDifferent for a rule of the active scenario.
func (d *ScenarioDiff) RuleDiffers(r Rule) bool {
	return d.IsDifferent(IdentityOf(r), ToMonthlyEquivalent(r.AmountCents, r.Cadence))
}

// =============================================================================
// COMPARISON REPORT
// =============================================================================

// TotalDelta is one headline total in both scenarios.
type TotalDelta struct {
	Kind    TotalKind `json:"kind"`
	Default Cents     `json:"default"`
	Current Cents     `json:"current"`
	Delta   Cents     `json:"delta"`
}

// RuleDelta flags a rule of the active scenario against the baseline.
type RuleDelta struct {
	RuleID      RuleID `json:"rule_id"`
	Identity    string `json:"identity"`
	Monthly     Cents  `json:"monthly"`
	Default     *Cents `json:"default,omitempty"` // nil when new in this scenario
	IsNew       bool   `json:"is_new"`
	IsDifferent bool   `json:"is_different"`
}

// Comparison is the full diff of an active scenario against the default.
type Comparison struct {
	DefaultID ScenarioID   `json:"default_id"`
	ActiveID  ScenarioID   `json:"active_id"`
	AsOf      Date         `json:"as_of"`
	Totals    []TotalDelta `json:"totals"`
	Rules     []RuleDelta  `json:"rules"`
}

// Compare builds the full report for the active scenario's rules.
func (d *ScenarioDiff) Compare(activeRules []Rule) Comparison {
	current := MonthlyTotals(activeRules, d.AsOf)

	report := Comparison{DefaultID: d.DefaultID, ActiveID: d.ActiveID, AsOf: d.AsOf}
	for _, kind := range AllTotalKinds {
		report.Totals = append(report.Totals, TotalDelta{
			Kind:    kind,
			Default: d.DefaultTotals.Get(kind),
			Current: current.Get(kind),
			Delta:   d.Delta(kind, current.Get(kind)),
		})
	}

	for _, r := range activeRules {
		if !r.ActiveOn(d.AsOf) {
			continue
		}
		id := IdentityOf(r)
		delta := RuleDelta{
			RuleID:      r.ID,
			Identity:    id.label(),
			Monthly:     ToMonthlyEquivalent(r.AmountCents, r.Cadence),
			IsDifferent: d.RuleDiffers(r),
		}
		if base, ok := d.DefaultAmount(id); ok {
			delta.Default = &base
		} else {
			delta.IsNew = !d.ViewingDefault()
		}
		report.Rules = append(report.Rules, delta)
	}
	return report
}

func (id Identity) label() string {
	switch {
	case id.Kind == KindBudget:
		return "category:" + string(id.CategoryID)
	case id.LineageID != "":
		return "lineage:" + id.LineageID
	default:
		return "description:" + id.Description
	}
}
