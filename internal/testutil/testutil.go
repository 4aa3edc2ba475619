// Package testutil provides shared test helpers and synthetic trajectory
// fixtures.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/banshee-data/flow.report/internal/trajectory"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// Uniform builds a vehicle sampled n times at a fixed interval, advancing
// step metres per sample from start. Time k is k*interval+t0 and position
// k is start+k*step, so integer inputs produce exact values.
func Uniform(id, vehicleType string, n int, t0, interval, start, step float64) *trajectory.Trajectory {
	tr := &trajectory.Trajectory{
		VehicleID: id,
		Type:      vehicleType,
		Class:     trajectory.ClassOf(vehicleType),
		Samples:   make([]trajectory.Sample, n),
	}
	speed := 0.0
	if interval > 0 {
		speed = step / interval
	}
	for k := 0; k < n; k++ {
		tr.Samples[k] = trajectory.Sample{
			Time:     t0 + float64(k)*interval,
			Position: start + float64(k)*step,
			Speed:    speed,
		}
	}
	return tr
}

// NewSet collects trajectories into a Set in the given order.
func NewSet(trajs ...*trajectory.Trajectory) *trajectory.Set {
	s := trajectory.NewSet()
	for _, t := range trajs {
		s.Add(t)
	}
	return s
}

// Ring builds count regular vehicles evenly spaced on a ring of length
// metres, all moving at speed m/s and sampled every interval seconds for
// duration seconds. Positions are continuous (never wrapped).
func Ring(count int, length, speed, interval, duration float64) *trajectory.Set {
	n := int(duration/interval) + 1
	s := trajectory.NewSet()
	for v := 0; v < count; v++ {
		start := float64(v) * length / float64(count)
		s.Add(Uniform("veh"+strconv.Itoa(v), "regular", n, 0, interval, start, speed*interval))
	}
	return s
}
