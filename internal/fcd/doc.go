// Package fcd reads SUMO simulation output: floating-car-data (FCD) traces
// as a stream of per-timestep vehicle observations, and induction-loop
// (E1 detector) interval summaries.
//
// Readers never skip malformed input. Broken or truncated XML surfaces as
// *ParseError; a vehicle or interval missing a required attribute, or
// carrying a non-numeric one, surfaces as *ValueError.
package fcd
