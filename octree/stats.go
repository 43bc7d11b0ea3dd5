package octree

import "time"

// Stats describes a built snapshot.
type Stats struct {
	Generation  uint64        `json:"generation"`
	Nodes       int           `json:"nodes"`
	Open        int           `json:"open"`
	Blocked     int           `json:"blocked"`
	Mixed       int           `json:"mixed"`
	LinkEntries int           `json:"link_entries"`
	Links       int           `json:"links"`
	Regenerated int           `json:"regenerated_links"`
	Duration    time.Duration `json:"duration"`
}

func (t *Octree) finishStats(d time.Duration, regenerated int) {
	s := Stats{
		Generation:  t.generation,
		Nodes:       len(t.nodes),
		LinkEntries: t.links.Len(),
		Links:       t.links.EdgeCount(),
		Regenerated: regenerated,
		Duration:    d,
	}
	for i := range t.nodes {
		switch t.nodes[i].State {
		case Open:
			s.Open++
		case Blocked:
			s.Blocked++
		case Mixed:
			s.Mixed++
		}
	}
	t.stats = s
}
