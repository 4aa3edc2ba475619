package fcd

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/flow.report/internal/monitoring"
)

// Observation is one vehicle as seen in a single FCD timestep.
type Observation struct {
	ID string
	// Lane is the SUMO lane id, used as the segment identifier.
	Lane string
	// Pos is the distance along the lane in metres.
	Pos float64
	// Speed in m/s.
	Speed float64
	Type  string
}

// Timestep is one <timestep> element and the vehicles it carries.
type Timestep struct {
	Time     float64
	Vehicles []Observation
}

type rawVehicle struct {
	ID    *string `xml:"id,attr"`
	Lane  string  `xml:"lane,attr"`
	Pos   *string `xml:"pos,attr"`
	Speed *string `xml:"speed,attr"`
	Type  string  `xml:"type,attr"`
}

type rawTimestep struct {
	Time     *string      `xml:"time,attr"`
	Vehicles []rawVehicle `xml:"vehicle"`
}

// Reader decodes an FCD export one timestep at a time.
type Reader struct {
	dec     *xml.Decoder
	records int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r)}
}

// Records returns the number of vehicle observations decoded so far.
func (r *Reader) Records() int { return r.records }

// Next returns the next timestep. It returns io.EOF once the document has
// been fully consumed.
func (r *Reader) Next() (Timestep, error) {
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			return Timestep{}, io.EOF
		}
		if err != nil {
			return Timestep{}, &ParseError{Offset: r.dec.InputOffset(), Err: err}
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "timestep" {
			continue
		}

		var raw rawTimestep
		if err := r.dec.DecodeElement(&raw, &start); err != nil {
			return Timestep{}, &ParseError{Offset: r.dec.InputOffset(), Err: err}
		}

		ts, err := convertTimestep(raw)
		if err != nil {
			return Timestep{}, err
		}
		r.records += len(ts.Vehicles)
		monitoring.RecordsRead.Add(float64(len(ts.Vehicles)))
		return ts, nil
	}
}

// ReadAll drains the reader. On any error no timesteps are returned.
func (r *Reader) ReadAll() ([]Timestep, error) {
	var out []Timestep
	for {
		ts, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
}

func convertTimestep(raw rawTimestep) (Timestep, error) {
	t, err := requireFloat("timestep", "time", raw.Time)
	if err != nil {
		return Timestep{}, err
	}

	ts := Timestep{Time: t, Vehicles: make([]Observation, 0, len(raw.Vehicles))}
	for _, v := range raw.Vehicles {
		if v.ID == nil || *v.ID == "" {
			return Timestep{}, &ValueError{Element: "vehicle", Attr: "id"}
		}
		pos, err := requireFloat("vehicle", "pos", v.Pos)
		if err != nil {
			return Timestep{}, fmt.Errorf("vehicle %q at t=%g: %w", *v.ID, t, err)
		}
		speed, err := requireFloat("vehicle", "speed", v.Speed)
		if err != nil {
			return Timestep{}, fmt.Errorf("vehicle %q at t=%g: %w", *v.ID, t, err)
		}
		ts.Vehicles = append(ts.Vehicles, Observation{
			ID:    *v.ID,
			Lane:  v.Lane,
			Pos:   pos,
			Speed: speed,
			Type:  v.Type,
		})
	}
	return ts, nil
}

func requireFloat(element, attr string, s *string) (float64, error) {
	if s == nil || *s == "" {
		return 0, &ValueError{Element: element, Attr: attr}
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return 0, &ValueError{Element: element, Attr: attr, Value: *s, Err: err}
	}
	return f, nil
}
