// Package edie aggregates reconstructed vehicle trajectories into
// macroscopic density, flow and space-mean speed over a regular space-time
// grid using Edie's generalised definitions.
//
// The corridor is circular: positions are wrapped modulo its length before
// they are binned. Aggregation runs in two stages. A per-vehicle index of
// sorted times and wrapped positions is built once, then every cell
// binary-searches its own time window. Rows of cells are evaluated by a
// bounded worker pool and the result does not depend on the worker count.
package edie
