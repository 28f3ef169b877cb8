// internal/aggregate/publish.go
package aggregate

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/sndlab/sndbench/internal/util"
)

// WriteArtifacts publishes the index and metadata under siteDir. Each artifact
// is written atomically, so a polling reader never observes a half-written
// file, and an unchanged corpus produces byte-identical output across passes.
func WriteArtifacts(siteDir string, index Index, meta Metadata) error {
	if err := writeJSON(filepath.Join(siteDir, IndexArtifactName), index); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	if err := writeJSON(filepath.Join(siteDir, MetadataArtifactName), meta); err != nil {
		return fmt.Errorf("publish metadata: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(path, append(data, '\n'))
}
