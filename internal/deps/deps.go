package deps

import (
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// Requirement is an external binary that one or more workflows execute.
type Requirement struct {
	Name    string
	Command string
	// Workflows names the workflows that run Command. Empty means every workflow.
	Workflows []string
}

// NeededBy reports whether workflow runs the binary. An empty workflow
// matches every requirement.
func (r Requirement) NeededBy(workflow string) bool {
	return usedBy(r.Workflows, workflow)
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Workflows   []string
	Description string
	Available   bool
	Detail      string
}

// ForWorkflow keeps the requirements workflow needs, in order.
func ForWorkflow(requirements []Requirement, workflow string) []Requirement {
	out := make([]Requirement, 0, len(requirements))
	for _, req := range requirements {
		if req.NeededBy(workflow) {
			out = append(out, req)
		}
	}
	return out
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Workflows:   slices.Clone(req.Workflows),
			Description: describe(req.Workflows),
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

func usedBy(workflows []string, workflow string) bool {
	return workflow == "" || len(workflows) == 0 || slices.Contains(workflows, workflow)
}

func describe(workflows []string) string {
	if len(workflows) == 0 {
		return "Required by every workflow"
	}
	return "Required for " + strings.Join(workflows, " and ")
}
