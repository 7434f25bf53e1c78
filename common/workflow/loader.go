package workflow

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lyzr/agentflow/common/flowerr"
)

// LoadFile reads and validates a workflow definition from a UTF-8 JSON file.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.KindNotFound, fmt.Sprintf("failed to read workflow file %s", path), err)
	}
	return Parse(data)
}

// Parse decodes and validates a workflow definition.
func Parse(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, flowerr.Wrap(flowerr.KindValidation, "failed to parse workflow JSON", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}
