package trajectory

import (
	"math"
	"strings"
)

// Vehicle classes of the mixed-traffic ring experiments.
const (
	ClassAll     = ""
	ClassRegular = "regular"
	ClassStable  = "stable"
)

// ClassOf maps a SUMO vehicle type to its class: any type mentioning
// "regular" is a regular (human-driven) vehicle, everything else is a
// stabilising vehicle.
func ClassOf(vehicleType string) string {
	if strings.Contains(vehicleType, ClassRegular) {
		return ClassRegular
	}
	return ClassStable
}

// Sample is one reconstructed observation of a vehicle.
type Sample struct {
	Time float64
	// Position is the continuous, lap-unwrapped corridor coordinate in metres.
	Position float64
	// Speed in m/s.
	Speed float64
	// Segment is the lane the raw observation was made on.
	Segment string
}

// Trajectory is the time-ordered sample sequence of one vehicle. Time is
// strictly increasing; a Trajectory is never mutated after reconstruction.
type Trajectory struct {
	VehicleID string
	Type      string
	Class     string
	Samples   []Sample
	Laps      int
}

// Len returns the number of samples.
func (t *Trajectory) Len() int { return len(t.Samples) }

// Times returns a copy of the sample times.
func (t *Trajectory) Times() []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.Time
	}
	return out
}

// Positions returns a copy of the continuous positions.
func (t *Trajectory) Positions() []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.Position
	}
	return out
}

// Set is the reconstructed trajectory table. Iteration order is the order
// in which vehicles first appeared in the stream.
type Set struct {
	byID  map[string]*Trajectory
	order []string
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{byID: make(map[string]*Trajectory)}
}

// Len returns the number of vehicles.
func (s *Set) Len() int { return len(s.order) }

// Get returns the trajectory of a vehicle, or nil.
func (s *Set) Get(id string) *Trajectory { return s.byID[id] }

// IDs returns vehicle ids in first-appearance order.
func (s *Set) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Trajectories returns the trajectories in first-appearance order.
func (s *Set) Trajectories() []*Trajectory {
	out := make([]*Trajectory, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Add inserts a finished trajectory. A trajectory already present under
// the same id is replaced in place, keeping its position in the order.
func (s *Set) Add(t *Trajectory) {
	if _, ok := s.byID[t.VehicleID]; !ok {
		s.order = append(s.order, t.VehicleID)
	}
	s.byID[t.VehicleID] = t
}

// Filter returns the subset of vehicles of the given class. ClassAll
// returns s itself.
func (s *Set) Filter(class string) *Set {
	if class == ClassAll {
		return s
	}
	out := NewSet()
	for _, id := range s.order {
		if t := s.byID[id]; t.Class == class {
			out.Add(t)
		}
	}
	return out
}

// Stats summarises a Set for logging.
type Stats struct {
	Vehicles int
	Samples  int
	Laps     int
	TimeMin  float64
	TimeMax  float64
	SpeedMin float64
	SpeedMax float64
}

// Stats computes summary statistics. Time and speed bounds are zero for an
// empty set.
func (s *Set) Stats() Stats {
	st := Stats{
		Vehicles: len(s.order),
		TimeMin:  math.Inf(1),
		TimeMax:  math.Inf(-1),
		SpeedMin: math.Inf(1),
		SpeedMax: math.Inf(-1),
	}
	for _, id := range s.order {
		t := s.byID[id]
		st.Samples += len(t.Samples)
		st.Laps += t.Laps
		for _, smp := range t.Samples {
			st.TimeMin = math.Min(st.TimeMin, smp.Time)
			st.TimeMax = math.Max(st.TimeMax, smp.Time)
			st.SpeedMin = math.Min(st.SpeedMin, smp.Speed)
			st.SpeedMax = math.Max(st.SpeedMax, smp.Speed)
		}
	}
	if st.Samples == 0 {
		st.TimeMin, st.TimeMax, st.SpeedMin, st.SpeedMax = 0, 0, 0, 0
	}
	return st
}
