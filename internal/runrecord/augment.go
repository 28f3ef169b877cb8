// internal/runrecord/augment.go
package runrecord

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sndlab/sndbench/internal/util"
)

// Augment appends fields to an existing run artifact. Prior fields are never
// rewritten: a key that already holds a non-null value is left untouched. The
// artifact is replaced atomically.
func Augment(runsDir, runID string, fields map[string]any) error {
	path := ArtifactPath(runsDir, runID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("run %s: %w (expected %s)", runID, ErrMissingArtifact, path)
		}
		return fmt.Errorf("run %s: read %s: %w", runID, path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("run %s: %w: %v", runID, ErrMalformedArtifact, err)
	}

	changed := false
	for key, value := range fields {
		if existing, ok := doc[key]; ok && string(existing) != "null" {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("run %s: encode augmentation field %q: %w", runID, key, err)
		}
		doc[key] = encoded
		changed = true
	}
	if !changed {
		return nil
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("run %s: encode artifact: %w", runID, err)
	}
	return util.WriteFileAtomic(path, append(out, '\n'))
}
