package render

import (
	"io"

	"github.com/banshee-data/flow.report/internal/edie"
	"github.com/banshee-data/flow.report/internal/fsutil"
	"github.com/banshee-data/flow.report/internal/monitoring"
)

// WriteContours writes the three contour PNGs and the interactive page of
// res into dir and returns the written paths.
func WriteContours(dir fsutil.ArtifactDir, res *edie.Result, o PageOptions) ([]string, error) {
	var paths []string
	for _, q := range edie.Quantities {
		path, err := dir.Write(ContourFileName(q), func(w io.Writer) error {
			return Contour(w, res, q, o.Contour)
		})
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	path, err := dir.Write(ContourPageFileName, func(w io.Writer) error {
		return ContourPage(w, res, o)
	})
	if err != nil {
		return paths, err
	}
	paths = append(paths, path)

	monitoring.Logf("render: wrote %d artifacts to %s", len(paths), dir.Dir)
	return paths, nil
}
