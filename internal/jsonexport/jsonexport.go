// Package jsonexport is the JSON interchange format of §6: the external
// consumer surface, playing the role the teacher's internal/toon package
// plays for its own tabular format — a rendering layer downstream of the
// core pipeline, not part of it.
package jsonexport

import (
	"encoding/json"
	"io"

	"github.com/crateweave/depgraph/internal/model"
)

// Encode renders result as indented JSON.
func Encode(result model.Result) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write encodes result as indented JSON directly to w.
func Write(w io.Writer, result model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
