// Package render draws aggregation results: space-time contour maps,
// time-space trajectory diagrams and fundamental diagrams as PNG images
// (gonum/plot), and an interactive HTML page of the contour maps
// (go-echarts).
package render
