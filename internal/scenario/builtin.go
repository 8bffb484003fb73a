package scenario

// Names of the built-in scenarios.
const (
	KnownName   = "known"
	UnknownName = "unknown"
)

// BuiltIn returns the two scenarios the experiment compares: a demand known ahead
// of time and a demand that changes unpredictably between trials.
func BuiltIn() []Scenario {
	return []Scenario{
		{
			Name:        KnownName,
			Description: "Every trial offers the same 50 Mbps load.",
			Demand:      Demand{Mode: ModeFixed, Mbps: 50},
		},
		{
			Name:        UnknownName,
			Description: "Every trial offers a load drawn uniformly between 10 and 100 Mbps.",
			Demand:      Demand{Mode: ModeRandom, MinMbps: 10, MaxMbps: 100},
		},
	}
}
