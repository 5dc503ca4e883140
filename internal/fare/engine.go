// Package fare evaluates tenant pricing rules against a trip and distance.
// It is pure: rules come in as arguments and the same input always yields
// the same quote.
package fare

import (
	"sort"

	"github.com/google/uuid"

	"geoconnect/internal/models"
)

const (
	ComponentBaseFare  = "BASE_FARE"
	ComponentDistance  = "DISTANCE_COMPONENT"
	ComponentSurcharge = "SURCHARGE"
)

// Fallback per-km rate in minor units, applied when no base rule matches.
const defaultPerKmMinorUnits = 1000

// Coord is a WGS84 coordinate pair.
type Coord struct {
	Lat float64
	Lng float64
}

// Request carries everything a quote needs. Rules may arrive in any order;
// the engine sorts by priority ascending, then name, before evaluating.
type Request struct {
	Rules       []models.PricingRule
	ProviderID  uuid.UUID
	Mode        string
	Origin      Coord
	Destination Coord
}

// Quote is an itemized fare for one passenger.
type Quote struct {
	Amount     int64                  `json:"amount"`
	Currency   string                 `json:"currency"`
	Components []models.FareComponent `json:"components"`
	DistanceKm float64                `json:"distance_km"`
}

// Engine computes quotes. The default currency backs the no-rule fallback.
type Engine struct {
	defaultCurrency string
}

func NewEngine(defaultCurrency string) *Engine {
	return &Engine{defaultCurrency: defaultCurrency}
}

type evalState struct {
	distanceKm     float64
	baseAmount     int64
	baseCurrency   string
	baseComponents []models.FareComponent
	hasBase        bool
	surcharges     []models.FareComponent
}

// evaluators is the closed dispatch table over rule variants. TIME_BASED,
// FIXED and DISCOUNT are declared variants that contribute nothing yet.
var evaluators = map[models.PricingRuleType]func(*evalState, models.PricingRule){
	models.RuleDistanceBased: evalDistanceBased,
	models.RuleTimeBased:     evalNothing,
	models.RuleFixed:         evalNothing,
	models.RuleSurcharge:     evalSurcharge,
	models.RuleDiscount:      evalNothing,
}

// Quote prices one passenger seat for the given trip geometry.
func (e *Engine) Quote(req Request) Quote {
	distance := HaversineKm(req.Origin.Lat, req.Origin.Lng, req.Destination.Lat, req.Destination.Lng)

	rules := make([]models.PricingRule, len(req.Rules))
	copy(rules, req.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].Name < rules[j].Name
	})

	st := &evalState{distanceKm: distance}
	for _, rule := range rules {
		if !matchesFilters(rule, req.ProviderID, req.Mode) {
			continue
		}
		if eval, ok := evaluators[rule.Type]; ok {
			eval(st, rule)
		}
	}

	if !st.hasBase {
		// Flat distance-only default when no base rule matched.
		amount := int64(distance * defaultPerKmMinorUnits)
		st.baseAmount = amount
		st.baseCurrency = e.defaultCurrency
		st.baseComponents = []models.FareComponent{{Type: ComponentBaseFare, Amount: amount}}
	}

	total := st.baseAmount
	components := append([]models.FareComponent{}, st.baseComponents...)
	for _, s := range st.surcharges {
		total += s.Amount
		components = append(components, s)
	}

	return Quote{
		Amount:     total,
		Currency:   st.baseCurrency,
		Components: components,
		DistanceKm: distance,
	}
}

func matchesFilters(rule models.PricingRule, providerID uuid.UUID, mode string) bool {
	if !rule.Active {
		return false
	}
	if rule.ProviderID != nil && *rule.ProviderID != providerID {
		return false
	}
	if rule.Mode != "" && mode != "" && rule.Mode != mode {
		return false
	}
	return true
}

// evalDistanceBased establishes the base price. Only the first matching
// base rule applies; later ones are ignored.
func evalDistanceBased(st *evalState, rule models.PricingRule) {
	if st.hasBase {
		return
	}

	cfg := rule.Config
	amount := cfg.BaseFareAmount + int64(st.distanceKm*float64(cfg.PerKmAmount))
	if amount < cfg.MinFareAmount {
		amount = cfg.MinFareAmount
	}

	st.hasBase = true
	st.baseAmount = amount
	st.baseCurrency = rule.Currency
	st.baseComponents = []models.FareComponent{
		{Type: ComponentBaseFare, Amount: cfg.BaseFareAmount},
		{Type: ComponentDistance, Amount: amount - cfg.BaseFareAmount},
	}
}

// evalSurcharge applies only once a base exists. Percentages are computed
// against the original base amount, not a running total.
func evalSurcharge(st *evalState, rule models.PricingRule) {
	if !st.hasBase {
		return
	}

	cfg := rule.Config
	var amount int64
	if cfg.SurchargeType == models.SurchargeFlat {
		amount = int64(cfg.Value)
	} else {
		amount = int64(float64(st.baseAmount) * cfg.Value / 100.0)
	}

	st.surcharges = append(st.surcharges, models.FareComponent{Type: ComponentSurcharge, Amount: amount})
}

func evalNothing(*evalState, models.PricingRule) {}
