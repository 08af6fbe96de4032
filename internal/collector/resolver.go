// ABOUTME: Agent directory resolution — connected agents minus the denylist
// ABOUTME: Normalizes hostnames to lowercase and preserves inventory order

package collector

import (
	"context"
	"strings"

	"github.com/2389/tendril-collect/internal/controlplane"
)

// AgentLister is the slice of the control-plane client the resolver needs.
type AgentLister interface {
	ListAgents(ctx context.Context) ([]controlplane.Agent, error)
}

// NormalizeHost lowercases and trims a hostname so checkpoint keys and
// dispatch-set membership are case-insensitive.
func NormalizeHost(hostname string) string {
	return strings.ToLower(strings.TrimSpace(hostname))
}

// ResolveTargets queries the agent inventory and returns the hostnames
// eligible for dispatch: connected, not on the exclusion list, lowercase,
// deduplicated, in inventory order. A listing failure is returned as-is
// (controlplane.ErrDirectoryUnavailable) and must abort the run; a wrong
// directory could skip live agents or target stale ones.
func ResolveTargets(ctx context.Context, lister AgentLister, exclude []string) ([]string, error) {
	agents, err := lister.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	denied := make(map[string]struct{}, len(exclude))
	for _, h := range exclude {
		denied[NormalizeHost(h)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(agents))
	var targets []string
	for _, a := range agents {
		if a.Status != controlplane.StatusConnected {
			continue
		}
		host := NormalizeHost(a.Hostname)
		if host == "" {
			continue
		}
		if _, ok := denied[host]; ok {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		targets = append(targets, host)
	}

	return targets, nil
}
