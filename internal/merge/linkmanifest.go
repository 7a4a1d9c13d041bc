package merge

import (
	"fmt"
	"os"

	"github.com/DavidAce/h5mbl/codec"
)

// linkManifestEntry records one parameter set's link-only skeleton: which
// source directory would have held the data that recordLinkSkeleton
// marked with a `.links` attribute instead of transferring.
type linkManifestEntry struct {
	BasePath  string `json:"base_path"`
	SourceDir string `json:"source_dir"`
}

// writeLinkManifest persists the run's link skeleton as a JSON sidecar
// next to the target file (<target>.manifest.json), giving a link-only
// run (-l) a human-readable record of what it would have merged, since
// the target file itself only carries one attribute per set.
func (d *Driver) writeLinkManifest(targetPath string) error {
	if !d.cfg.LinkOnly || len(d.linkManifest) == 0 {
		return nil
	}

	data, err := codec.JSON{}.Marshal(d.linkManifest)
	if err != nil {
		return fmt.Errorf("merge: encode link manifest: %w", err)
	}

	path := targetPath + ".manifest.json"
	f, err := d.fsys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("merge: open link manifest %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("merge: write link manifest %s: %w", path, err)
	}
	return f.Close()
}
