package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/appforge/appforge/internal/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile reads an application plan from a YAML file
func LoadFile(path string) (*ApplicationPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read plan file", err)
	}

	var p ApplicationPlan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveFile writes the plan to a YAML file for operator inspection
func SaveFile(p *ApplicationPlan, path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to marshal plan", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write plan file", err)
	}
	return nil
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// ExtractJSON recovers a JSON object from model output. Models are asked
// to answer with a fenced ```json block but sometimes return bare JSON;
// both forms are accepted.
func ExtractJSON(output string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(output); m != nil {
		return m[1], nil
	}

	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start >= 0 && end > start {
		return output[start : end+1], nil
	}
	return "", fmt.Errorf("no JSON object found in planning response")
}

// planningResponse mirrors the JSON shape the planning model answers with
type planningResponse struct {
	ImplementationPlan struct {
		Files []struct {
			Path        string   `json:"path"`
			Description string   `json:"description"`
			DependsOn   []string `json:"depends_on"`
		} `json:"files"`
		Dependencies []string `json:"dependencies"`
		Notes        string   `json:"notes"`
	} `json:"implementation_plan"`
}

// FromPlanningResponse converts a planning model's answer into an
// ApplicationPlan. File order in the response is the declared
// implementation sequence, preserved as declaration order.
func FromPlanningResponse(output, project, description string) (*ApplicationPlan, error) {
	raw, err := ExtractJSON(output)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePlanInvalid, "unparseable planning response", err)
	}

	var resp planningResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, errors.Wrap(errors.ErrCodePlanInvalid, "malformed planning JSON", err)
	}
	if len(resp.ImplementationPlan.Files) == 0 {
		return nil, errors.New(errors.ErrCodePlanInvalid, "planning response lists no files")
	}

	p := &ApplicationPlan{
		Version:     1,
		Project:     project,
		Description: description,
	}

	pathToID := make(map[string]string, len(resp.ImplementationPlan.Files))
	for i, f := range resp.ImplementationPlan.Files {
		id := fmt.Sprintf("node-%03d", i+1)
		pathToID[f.Path] = id
		p.Nodes = append(p.Nodes, PlanNode{
			ID:       id,
			Path:     f.Path,
			Kind:     inferKind(f.Path, f.Description),
			Behavior: f.Description,
			Status:   StatusPending,
		})
	}

	// Dependencies arrive as paths; translate to node IDs and drop
	// references to files outside the plan.
	for i, f := range resp.ImplementationPlan.Files {
		for _, depPath := range f.DependsOn {
			if depID, ok := pathToID[depPath]; ok && depID != p.Nodes[i].ID {
				p.Nodes[i].DependsOn = append(p.Nodes[i].DependsOn, depID)
			}
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// inferKind assigns a node kind from path and description keywords
func inferKind(path, desc string) NodeKind {
	text := strings.ToLower(path + " " + desc)

	switch {
	case strings.Contains(text, "test"):
		return KindTest
	case strings.Contains(text, "migration"), strings.Contains(text, "schema"),
		strings.Contains(text, "database"), strings.HasSuffix(path, ".sql"):
		return KindDB
	case strings.Contains(text, "component"), strings.Contains(text, "page"),
		strings.HasSuffix(path, ".tsx"), strings.HasSuffix(path, ".jsx"),
		strings.HasSuffix(path, ".vue"), strings.HasSuffix(path, ".css"):
		return KindFrontend
	default:
		return KindBackend
	}
}
