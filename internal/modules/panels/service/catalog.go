package service

// PanelSpec describes one contract variety the terminal offers. The two
// sides map onto server contract types; the flags say which extra inputs
// the proposal needs.
type PanelSpec struct {
	Code  string
	Title string

	// SideTypes[0] is the "up"/"yes" side, SideTypes[1] the opposite.
	SideTypes [2]string

	NeedsBarrier     bool // single price barrier
	NeedsRange       bool // high/low barrier pair
	NeedsDigit       bool // last-digit prediction (barrier is a digit 0-9)
	NeedsGrowthRate  bool // accumulators
	TickDurationOnly bool // contract only trades in tick units
}

// Catalog lists every panel the dashboard renders. All panels share the one
// gateway client; none of them carry any wire logic of their own.
func Catalog() []PanelSpec {
	return []PanelSpec{
		{Code: "rise_fall", Title: "Rise/Fall", SideTypes: [2]string{"CALL", "PUT"}},
		{Code: "rise_fall_equal", Title: "Rise/Fall (Allow Equals)", SideTypes: [2]string{"CALLE", "PUTE"}},
		{Code: "higher_lower", Title: "Higher/Lower", SideTypes: [2]string{"CALL", "PUT"}, NeedsBarrier: true},
		{Code: "touch_no_touch", Title: "Touch/No Touch", SideTypes: [2]string{"ONETOUCH", "NOTOUCH"}, NeedsBarrier: true},
		{Code: "ends_in_out", Title: "Ends Between/Outside", SideTypes: [2]string{"EXPIRYRANGE", "EXPIRYMISS"}, NeedsRange: true},
		{Code: "stays_in_goes_out", Title: "Stays Between/Goes Outside", SideTypes: [2]string{"RANGE", "UPORDOWN"}, NeedsRange: true},
		{Code: "match_diff", Title: "Digit Matches/Differs", SideTypes: [2]string{"DIGITMATCH", "DIGITDIFF"}, NeedsDigit: true, TickDurationOnly: true},
		{Code: "even_odd", Title: "Digit Even/Odd", SideTypes: [2]string{"DIGITEVEN", "DIGITODD"}, TickDurationOnly: true},
		{Code: "over_under", Title: "Digit Over/Under", SideTypes: [2]string{"DIGITOVER", "DIGITUNDER"}, NeedsDigit: true, TickDurationOnly: true},
		{Code: "asian", Title: "Asian Up/Down", SideTypes: [2]string{"ASIANU", "ASIAND"}, TickDurationOnly: true},
		{Code: "reset", Title: "Reset Call/Put", SideTypes: [2]string{"RESETCALL", "RESETPUT"}},
		{Code: "high_low_tick", Title: "High Tick/Low Tick", SideTypes: [2]string{"TICKHIGH", "TICKLOW"}, NeedsDigit: true, TickDurationOnly: true},
		{Code: "only_ups_downs", Title: "Only Ups/Only Downs", SideTypes: [2]string{"RUNHIGH", "RUNLOW"}, TickDurationOnly: true},
		{Code: "multiplier", Title: "Multipliers", SideTypes: [2]string{"MULTUP", "MULTDOWN"}},
		{Code: "accumulator", Title: "Accumulators", SideTypes: [2]string{"ACCU", ""}, NeedsGrowthRate: true},
	}
}

// SpecByCode returns the catalog entry, false when unknown.
func SpecByCode(code string) (PanelSpec, bool) {
	for _, s := range Catalog() {
		if s.Code == code {
			return s, true
		}
	}
	return PanelSpec{}, false
}
