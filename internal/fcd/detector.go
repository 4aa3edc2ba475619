package fcd

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/flow.report/internal/units"
)

// Interval is one aggregation interval of an induction-loop detector.
type Interval struct {
	Begin float64
	End   float64
	ID    string
	// Flow in veh/h.
	Flow float64
	// Occupancy in percent.
	Occupancy float64
	// HarmonicMeanSpeed in m/s.
	HarmonicMeanSpeed float64
	// Density in veh/km, derived from Flow and HarmonicMeanSpeed.
	Density float64
}

type rawInterval struct {
	Begin             *string `xml:"begin,attr"`
	End               string  `xml:"end,attr"`
	ID                string  `xml:"id,attr"`
	Flow              string  `xml:"flow,attr"`
	Occupancy         string  `xml:"occupancy,attr"`
	HarmonicMeanSpeed string  `xml:"harmonicMeanSpeed,attr"`
}

// ReadDetector decodes all <interval> elements from a detector output file.
// Intervals without a positive harmonic mean speed carry no usable
// measurement and are skipped; absent flow and speed attributes read as 0.
func ReadDetector(r io.Reader) ([]Interval, error) {
	dec := xml.NewDecoder(r)
	var out []Interval
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, &ParseError{Offset: dec.InputOffset(), Err: err}
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "interval" {
			continue
		}

		var raw rawInterval
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return nil, &ParseError{Offset: dec.InputOffset(), Err: err}
		}

		iv, err := convertInterval(raw)
		if err != nil {
			return nil, err
		}
		if iv.HarmonicMeanSpeed <= 0 {
			continue
		}
		out = append(out, iv)
	}
}

func convertInterval(raw rawInterval) (Interval, error) {
	begin, err := requireFloat("interval", "begin", raw.Begin)
	if err != nil {
		return Interval{}, err
	}

	iv := Interval{Begin: begin, ID: raw.ID}
	fields := []struct {
		attr string
		val  string
		dst  *float64
	}{
		{"end", raw.End, &iv.End},
		{"flow", raw.Flow, &iv.Flow},
		{"occupancy", raw.Occupancy, &iv.Occupancy},
		{"harmonicMeanSpeed", raw.HarmonicMeanSpeed, &iv.HarmonicMeanSpeed},
	}
	for _, f := range fields {
		if f.val == "" {
			continue
		}
		v, err := strconv.ParseFloat(f.val, 64)
		if err != nil {
			return Interval{}, fmt.Errorf("interval at t=%g: %w", begin,
				&ValueError{Element: "interval", Attr: f.attr, Value: f.val, Err: err})
		}
		*f.dst = v
	}

	iv.Density = units.DensityFromFlowSpeed(iv.Flow, iv.HarmonicMeanSpeed)
	return iv, nil
}
