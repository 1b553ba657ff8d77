package cluster

import (
	"sort"

	"github.com/agenthands/relate/internal/core/model"
)

// Detector groups a tenant's contacts into duplicate-review clusters by
// propagating labels across the advisory SIMILAR_TO edges. Operators get
// whole duplicate families to review instead of isolated pairs.
type Detector struct {
	MaxIterations int
}

func NewDetector() *Detector {
	return &Detector{MaxIterations: 20}
}

// Cluster is one family of mutually-similar contacts.
type Cluster struct {
	Contacts []*model.Contact `json:"contacts"`
	// MaxScore is the strongest similarity link inside the cluster, a
	// rough priority signal for review queues.
	MaxScore float64 `json:"max_score"`
}

// Detect runs label propagation over the SIMILAR_TO edges. Non-similarity
// edges are ignored: ownership and peer relationships say nothing about
// records being duplicates. Singleton clusters are dropped.
func (d *Detector) Detect(contacts []*model.Contact, rels []*model.Relationship) []Cluster {
	if len(contacts) == 0 {
		return nil
	}

	byID := make(map[string]*model.Contact, len(contacts))
	adj := make(map[string]map[string]float64)
	peak := make(map[string]float64) // strongest incident link per contact
	for _, c := range contacts {
		byID[c.ID] = c
		adj[c.ID] = make(map[string]float64)
	}

	for _, r := range rels {
		if r.Type != model.RelSimilarTo {
			continue
		}
		if _, ok := byID[r.SourceID]; !ok {
			continue
		}
		if _, ok := byID[r.TargetID]; !ok {
			continue
		}
		// Undirected; similarity scores weight the propagation.
		adj[r.SourceID][r.TargetID] += r.Score
		adj[r.TargetID][r.SourceID] += r.Score
		if r.Score > peak[r.SourceID] {
			peak[r.SourceID] = r.Score
		}
		if r.Score > peak[r.TargetID] {
			peak[r.TargetID] = r.Score
		}
	}

	ids := make([]string, 0, len(contacts))
	labels := make(map[string]string, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
		labels[c.ID] = c.ID
	}
	sort.Strings(ids)

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, id := range ids {
			neighbors := adj[id]
			if len(neighbors) == 0 {
				continue
			}

			weights := make(map[string]float64)
			maxWeight := 0.0
			for n, w := range neighbors {
				label := labels[n]
				weights[label] += w
				if weights[label] > maxWeight {
					maxWeight = weights[label]
				}
			}

			var candidates []string
			for label, w := range weights {
				if w == maxWeight {
					candidates = append(candidates, label)
				}
			}
			sort.Strings(candidates)
			best := candidates[len(candidates)-1]

			if labels[id] != best {
				labels[id] = best
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	grouped := make(map[string][]*model.Contact)
	for id, label := range labels {
		grouped[label] = append(grouped[label], byID[id])
	}

	var clusters []Cluster
	for _, members := range grouped {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		maxScore := 0.0
		for _, m := range members {
			if peak[m.ID] > maxScore {
				maxScore = peak[m.ID]
			}
		}
		clusters = append(clusters, Cluster{Contacts: members, MaxScore: maxScore})
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].MaxScore != clusters[j].MaxScore {
			return clusters[i].MaxScore > clusters[j].MaxScore
		}
		return clusters[i].Contacts[0].ID < clusters[j].Contacts[0].ID
	})
	return clusters
}
