// Package trajectory rebuilds continuous per-vehicle trajectories from an
// FCD record stream.
//
// Positions on the individual road segments of a circular corridor are
// stitched into one axis with a fixed offset table, and the coordinate
// reset at the end of every lap is removed by adding the corridor length
// once per completed lap. No smoothing, interpolation or outlier rejection
// is performed.
package trajectory
