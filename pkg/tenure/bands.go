package tenure

// Band is a half-open interval [Min, Max) of whole years. Max of zero
// means the band is unbounded above.
type Band struct {
	Label string `json:"label" yaml:"label"`
	Min   int    `json:"min" yaml:"min"`
	Max   int    `json:"max,omitempty" yaml:"max,omitempty"`
}

// Contains reports whether years falls inside the band.
func (b Band) Contains(years int) bool {
	if years < b.Min {
		return false
	}
	return b.Max == 0 || years < b.Max
}

// TenureBands are the service bands used for reporting and termination weighting.
var TenureBands = []Band{
	{Label: "<2", Min: 0, Max: 2},
	{Label: "2-4", Min: 2, Max: 5},
	{Label: "5-9", Min: 5, Max: 10},
	{Label: "10-19", Min: 10, Max: 20},
	{Label: "20+", Min: 20},
}

// AgeBands are the age bands used for reporting.
var AgeBands = []Band{
	{Label: "<25", Min: 0, Max: 25},
	{Label: "25-34", Min: 25, Max: 35},
	{Label: "35-44", Min: 35, Max: 45},
	{Label: "45-54", Min: 45, Max: 55},
	{Label: "55-64", Min: 55, Max: 65},
	{Label: "65+", Min: 65},
}

// TenureBand returns the label of the tenure band containing t.
func TenureBand(t int) string {
	return bandLabel(TenureBands, t)
}

// AgeBand returns the label of the age band containing age.
func AgeBand(age int) string {
	return bandLabel(AgeBands, age)
}

// IsTenureBand reports whether label names one of TenureBands.
func IsTenureBand(label string) bool {
	for _, b := range TenureBands {
		if b.Label == label {
			return true
		}
	}
	return false
}

func bandLabel(bands []Band, years int) string {
	if years < 0 {
		years = 0
	}
	for _, b := range bands {
		if b.Contains(years) {
			return b.Label
		}
	}
	return bands[len(bands)-1].Label
}
