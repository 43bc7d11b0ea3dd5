package query

import (
	"github.com/pkg/errors"

	"github.com/Orrigine/OverScoped/math32"
)

// Smoother turns a corridor into waypoints by string pulling, optionally
// rounding corners with Catmull-Rom segments.
type Smoother struct {
	los          LineOfSightFunc
	subdivisions int
}

// NewSmoother returns a smoother checking moves with los. subdivisions is the
// number of curve points inserted per segment; 0 keeps straight segments.
func NewSmoother(los LineOfSightFunc, subdivisions int) *Smoother {
	if subdivisions < 0 {
		subdivisions = 0
	}
	return &Smoother{los: los, subdivisions: subdivisions}
}

// Smooth returns the waypoints from start to goal along c. The first and
// last corridor centres are replaced by start and goal.
func (s *Smoother) Smooth(c Corridor, start, goal math32.Vector3, clearance float32) ([]math32.Vector3, error) {
	switch len(c.Nodes) {
	case 0:
		return nil, errors.Wrap(ErrNoPathExists, "empty corridor")
	case 1:
		return s.within(c.Nodes[0].Center(), start, goal, clearance)
	}

	points := pathPoints(c, start, goal)
	pulled, err := s.pull(c, points, clearance)
	if err != nil {
		return nil, err
	}
	if s.subdivisions == 0 || len(pulled) < 3 {
		return pulled, nil
	}
	return s.curve(pulled, clearance)
}

// within joins two points of the same Open box, through its centre when the
// direct move is blocked.
func (s *Smoother) within(center, start, goal math32.Vector3, clearance float32) ([]math32.Vector3, error) {
	clear, err := s.los(start, goal, clearance)
	if err != nil {
		return nil, err
	}
	if clear {
		return []math32.Vector3{start, goal}, nil
	}
	ok, err := s.chain(clearance, start, center, goal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNoPathExists, "no clear move from %v to %v", start, goal)
	}
	return []math32.Vector3{start, center, goal}, nil
}

// pathPoints returns the corridor centres with the endpoints substituted.
func pathPoints(c Corridor, start, goal math32.Vector3) []math32.Vector3 {
	if len(c.Nodes) < 2 {
		return []math32.Vector3{start, goal}
	}
	points := c.Centers()
	points[0] = start
	points[len(points)-1] = goal
	return points
}

// pull keeps, from every accepted point, the furthest later point in sight.
// A hidden next point is reached through a detour.
func (s *Smoother) pull(c Corridor, points []math32.Vector3, clearance float32) ([]math32.Vector3, error) {
	smoothed := []math32.Vector3{points[0]}
	current := 0
	for current < len(points)-1 {
		next := -1
		for j := len(points) - 1; j > current; j-- {
			clear, err := s.los(points[current], points[j], clearance)
			if err != nil {
				return nil, err
			}
			if clear {
				next = j
				break
			}
		}
		if next < 0 {
			next = current + 1
			via, err := s.detour(c, points, current, clearance)
			if err != nil {
				return nil, err
			}
			smoothed = append(smoothed, via...)
		}
		smoothed = append(smoothed, points[next])
		current = next
	}
	return smoothed, nil
}

// detour returns the points joining points[i] to points[i+1]: the centre
// of the face shared by their nodes when they touch, or else both node
// centres.
func (s *Smoother) detour(c Corridor, points []math32.Vector3, i int, clearance float32) ([]math32.Vector3, error) {
	from, to := points[i], points[i+1]
	a, b := c.Nodes[i].Bounds, c.Nodes[i+1].Bounds

	var routes [][]math32.Vector3
	if a.Intersects(b) {
		routes = append(routes, []math32.Vector3{a.Intersection(b).Center()})
	}
	routes = append(routes, []math32.Vector3{a.Center(), b.Center()})
	for _, route := range routes {
		via := make([]math32.Vector3, 0, len(route))
		for _, p := range route {
			if p != from && p != to {
				via = append(via, p)
			}
		}
		if len(via) == 0 {
			continue
		}
		ok, err := s.chain(clearance, append(append([]math32.Vector3{from}, via...), to)...)
		if err != nil {
			return nil, err
		}
		if ok {
			return via, nil
		}
	}
	return nil, errors.Wrapf(ErrNoPathExists, "no clear move from node %s to %s",
		c.Nodes[i].Address, c.Nodes[i+1].Address)
}

// chain reports whether every consecutive move along points is clear.
func (s *Smoother) chain(clearance float32, points ...math32.Vector3) (bool, error) {
	for i := 1; i < len(points); i++ {
		clear, err := s.los(points[i-1], points[i], clearance)
		if err != nil || !clear {
			return false, err
		}
	}
	return true, nil
}

// curve replaces every straight segment whose Catmull-Rom arc stays in sight.
func (s *Smoother) curve(points []math32.Vector3, clearance float32) ([]math32.Vector3, error) {
	last := len(points) - 1
	out := []math32.Vector3{points[0]}
	for i := 0; i < last; i++ {
		p0, p1, p2, p3 := points[max(i-1, 0)], points[i], points[i+1], points[min(i+2, last)]

		arc := make([]math32.Vector3, 0, s.subdivisions)
		for k := 1; k <= s.subdivisions; k++ {
			arc = append(arc, catmullRom(p0, p1, p2, p3, float32(k)/float32(s.subdivisions+1)))
		}
		ok := true
		prev := p1
		for _, q := range append(arc, p2) {
			clear, err := s.los(prev, q, clearance)
			if err != nil {
				return nil, err
			}
			if !clear {
				ok = false
				break
			}
			prev = q
		}
		if ok {
			out = append(out, arc...)
		}
		out = append(out, p2)
	}
	return out, nil
}

func catmullRom(p0, p1, p2, p3 math32.Vector3, t float32) math32.Vector3 {
	t2 := t * t
	t3 := t2 * t
	a := p1.Scale(2)
	b := p2.Sub(p0).Scale(t)
	c := p0.Scale(2).Sub(p1.Scale(5)).Add(p2.Scale(4)).Sub(p3).Scale(t2)
	d := p1.Scale(3).Sub(p0).Sub(p2.Scale(3)).Add(p3).Scale(t3)
	return a.Add(b).Add(c).Add(d).Scale(0.5)
}
