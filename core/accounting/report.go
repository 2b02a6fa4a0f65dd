package accounting

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/openbat/core/model"
)

// Category names one energy flow of the report.
type Category string

// Categories shared by every topology.
const (
	Load        Category = "El"      // load including peripheral consumption
	PV          Category = "Epv"     // PV generator DC output including curtailment
	BatteryIn   Category = "Ebatin"  // battery DC input (charged)
	BatteryOut  Category = "Ebatout" // battery DC output (discharged)
	FeedIn      Category = "Eac2g"   // grid feed-in
	GridDemand  Category = "Eg2ac"   // grid demand
	GridToLoad  Category = "Eg2l"    // load supplied by the grid
	Peripheral  Category = "Eperi"   // peripheral consumption
	Curtailment Category = "Ect"     // curtailed PV energy
)

// Categories of AC-coupled systems.
const (
	PVSystemOut    Category = "Epvs"    // PV system AC output including curtailment
	ACToBattery    Category = "Eac2bs"  // battery system AC input
	BatteryToAC    Category = "Ebs2ac"  // battery system AC output
	PVSystemToLoad Category = "Epvs2l"  // direct use of PV power
	PVSystemToBat  Category = "Epvs2bs" // PV charging
	GridToBattery  Category = "Eg2bs"   // grid charging
	PVSystemToGrid Category = "Epvs2g"  // PV feed-in
	BatteryToLoad  Category = "Ebs2l"   // load supplied by the battery
	BatteryToGrid  Category = "Ebs2g"   // battery feed-in
)

// Categories of DC- and PV-coupled systems.
const (
	GridToSystem Category = "Eg2pvbs"  // grid demand of the PV-battery system
	ACToSystem   Category = "Eac2pvbs" // AC input of the PV-battery system
	SystemToAC   Category = "Epvbs2ac" // AC output of the PV-battery system
	SystemToLoad Category = "Epvbs2l"  // load supplied by the PV-battery system
	PVToLoad     Category = "Epv2l"    // direct use of PV power
	PVToGrid     Category = "Epv2g"    // PV feed-in
)

var common = []Category{Load, PV, BatteryIn, BatteryOut, FeedIn, GridDemand, GridToLoad, Peripheral, Curtailment}

var acOnly = []Category{PVSystemOut, ACToBattery, BatteryToAC, PVSystemToLoad, PVSystemToBat,
	GridToBattery, PVSystemToGrid, BatteryToLoad, BatteryToGrid}

var busOnly = []Category{GridToSystem, ACToSystem, SystemToAC, SystemToLoad, PVToLoad, PVToGrid}

// Categories lists the report keys of a topology in display order.
func Categories(t model.Topology) []Category {
	out := append([]Category(nil), common...)
	if t == model.TopologyAC {
		return append(out, acOnly...)
	}
	return append(out, busOnly...)
}

// Report maps each category to its energy in MWh.
type Report map[Category]float64

// Entry is one line of a sorted report.
type Entry struct {
	Category Category `json:"category"`
	MWh      float64  `json:"mwh"`
}

// Sorted returns the entries in the order of Categories followed by any
// unknown keys in lexical order.
func (r Report) Sorted(t model.Topology) []Entry {
	seen := make(map[Category]bool, len(r))
	var out []Entry
	for _, c := range Categories(t) {
		if v, ok := r[c]; ok {
			out = append(out, Entry{Category: c, MWh: v})
			seen[c] = true
		}
	}
	var rest []string
	for c := range r {
		if !seen[c] {
			rest = append(rest, string(c))
		}
	}
	sort.Strings(rest)
	for _, c := range rest {
		out = append(out, Entry{Category: Category(c), MWh: r[Category(c)]})
	}
	return out
}

// energy returns Σ|P|·dt in MWh.
func energy(p []float64, dt float64) float64 {
	if len(p) == 0 {
		return 0
	}
	return floats.Norm(p, 1) * dt / 3.6e9
}
