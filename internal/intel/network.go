package intel

import (
	"sort"

	"insureguard/risk-api/internal/domain"
)

// CriticalClusterSize is the component size at which a cluster is critical
// regardless of its members' scores.
const CriticalClusterSize = 5

// NodeClaim is the node type of claim vertices in the network view.
const NodeClaim = "claim"

// Network is the entity-sharing graph over a claim snapshot.
type Network struct {
	Nodes    []domain.NetworkNode  `json:"nodes"`
	Edges    []domain.NetworkEdge  `json:"edges"`
	Clusters []domain.FraudCluster `json:"clusters"`
	Skipped  int                   `json:"skipped_claims"`
}

// BuildNetwork links claims that share a normalised phone, address, repair
// shop or hospital and reports every connected component of two or more
// claims as a FraudCluster.
//
// Clusters are ordered by their smallest member ID and ClusterID is the
// position in that order, so the result is reproducible for a given corpus.
// The node/edge view holds the clustered claims plus the shared entities that
// join them.
func BuildNetwork(corpus []domain.Claim) Network {
	claims, skipped := screen(corpus, linkable)

	byID := make(map[string]*domain.Claim, len(claims))
	members := make(map[entityKey][]string)
	labels := make(map[entityKey]string)
	for i := range claims {
		c := &claims[i]
		byID[c.ID] = c
		for _, t := range domain.EntityTypes {
			raw := c.EntityValue(t)
			k := entityKey{Type: t, Value: domain.NormalizeEntity(raw)}
			if k.Value == "" {
				continue
			}
			members[k] = append(members[k], c.ID)
			if _, ok := labels[k]; !ok {
				labels[k] = raw
			}
		}
	}

	adj := adjacency(members)

	// Iterative DFS from each unvisited claim in ID order.
	visited := make(map[string]bool, len(claims))
	var components [][]string
	for i := range claims {
		start := claims[i].ID
		if visited[start] {
			continue
		}
		visited[start] = true
		stack := []string{start}
		var comp []string
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, id)
			for _, n := range adj[id] {
				if !visited[n] {
					visited[n] = true
					stack = append(stack, n)
				}
			}
		}
		if len(comp) >= 2 {
			sort.Strings(comp)
			components = append(components, comp)
		}
	}
	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })

	net := Network{Skipped: skipped, Clusters: make([]domain.FraudCluster, 0, len(components))}
	clustered := make(map[string]bool)
	for i, comp := range components {
		risk := domain.SeverityHigh
		if len(comp) >= CriticalClusterSize {
			risk = domain.SeverityCritical
		}
		for _, id := range comp {
			clustered[id] = true
			if byID[id].HighRisk() {
				risk = domain.SeverityCritical
			}
		}
		net.Clusters = append(net.Clusters, domain.FraudCluster{
			ClusterID:      i,
			MemberClaimIDs: comp,
			Size:           len(comp),
			RiskLevel:      risk,
		})
	}

	net.Nodes, net.Edges = view(byID, clustered, members, labels)
	return net
}

// adjacency maps each claim to the sorted, de-duplicated claims it shares at
// least one entity with.
func adjacency(members map[entityKey][]string) map[string][]string {
	sets := make(map[string]map[string]struct{})
	for _, ids := range members {
		if len(ids) < 2 {
			continue
		}
		for _, a := range ids {
			s, ok := sets[a]
			if !ok {
				s = make(map[string]struct{})
				sets[a] = s
			}
			for _, b := range ids {
				if a != b {
					s[b] = struct{}{}
				}
			}
		}
	}

	adj := make(map[string][]string, len(sets))
	for id, s := range sets {
		ns := make([]string, 0, len(s))
		for n := range s {
			ns = append(ns, n)
		}
		sort.Strings(ns)
		adj[id] = ns
	}
	return adj
}

func view(byID map[string]*domain.Claim, clustered map[string]bool, members map[entityKey][]string, labels map[entityKey]string) ([]domain.NetworkNode, []domain.NetworkEdge) {
	nodes := make([]domain.NetworkNode, 0, len(clustered))
	edges := []domain.NetworkEdge{}

	for id := range clustered {
		label := byID[id].ClaimNumber
		if label == "" {
			label = id
		}
		nodes = append(nodes, domain.NetworkNode{ID: id, Type: NodeClaim, Label: label})
	}
	for k, ids := range members {
		if len(ids) < 2 {
			continue
		}
		nodeID := k.Type + ":" + k.Value
		nodes = append(nodes, domain.NetworkNode{ID: nodeID, Type: k.Type, Label: labels[k]})
		for _, id := range ids {
			edges = append(edges, domain.NetworkEdge{Source: id, Target: nodeID, Type: k.Type})
		}
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return nodes, edges
}
