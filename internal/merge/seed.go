package merge

import (
	"path/filepath"

	"github.com/DavidAce/h5mbl/internal/model"
)

// parseSeed extracts the seed encoded in path's filename (spec.md §6
// "Filenames encode the seed as the first run of decimal digits in the
// basename").
func parseSeed(path string) (int64, bool) {
	return model.ParseFilenameSeed(filepath.Base(path))
}
