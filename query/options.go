package query

import (
	"strings"

	"github.com/pkg/errors"
)

// Algorithm selects the graph search.
type Algorithm uint8

const (
	// AStar searches the link graph and returns an optimal corridor.
	AStar Algorithm = iota
	// ThetaStar checks line of sight from a node's parent to each neighbour
	// while expanding, producing any-angle corridors.
	ThetaStar
	// LazyThetaStar defers the line of sight check until a node is expanded.
	LazyThetaStar
)

func (a Algorithm) String() string {
	switch a {
	case ThetaStar:
		return "theta_star"
	case LazyThetaStar:
		return "lazy_theta_star"
	default:
		return "a_star"
	}
}

// ParseAlgorithm accepts the names returned by Algorithm.String.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "", "a_star", "astar":
		return AStar, nil
	case "theta_star", "thetastar":
		return ThetaStar, nil
	case "lazy_theta_star", "lazythetastar":
		return LazyThetaStar, nil
	}
	return AStar, errors.Errorf("unknown search algorithm %q", s)
}

// Heuristic selects the distance estimate to the goal.
type Heuristic uint8

const (
	Euclidean Heuristic = iota
	Manhattan
)

func (h Heuristic) String() string {
	if h == Manhattan {
		return "manhattan"
	}
	return "euclidean"
}

// ParseHeuristic accepts "euclidean" and "manhattan".
func ParseHeuristic(s string) (Heuristic, error) {
	switch strings.ToLower(s) {
	case "", "euclidean":
		return Euclidean, nil
	case "manhattan":
		return Manhattan, nil
	}
	return Euclidean, errors.Errorf("unknown heuristic %q", s)
}

// CostMode selects the traversal cost of an edge.
type CostMode uint8

const (
	// DistanceCost charges the distance between node centres.
	DistanceCost CostMode = iota
	// FixedCost charges Options.FixedCost per edge.
	FixedCost
)

func (c CostMode) String() string {
	if c == FixedCost {
		return "fixed"
	}
	return "distance"
}

// ParseCostMode accepts "distance" and "fixed".
func ParseCostMode(s string) (CostMode, error) {
	switch strings.ToLower(s) {
	case "", "distance":
		return DistanceCost, nil
	case "fixed":
		return FixedCost, nil
	}
	return DistanceCost, errors.Errorf("unknown cost mode %q", s)
}

// Options configures a Finder and a Planner.
type Options struct {
	Algorithm Algorithm
	Heuristic Heuristic
	// HeuristicScale above 1 trades optimality for fewer expansions.
	HeuristicScale float32
	Cost           CostMode
	FixedCost      float32
	// NodeSizeCompensation favours large nodes by scaling f with
	// 1/max(1, nodeSize/leafSize).
	NodeSizeCompensation bool
	// MaxIterations caps node expansions; 0 means unlimited.
	MaxIterations       int
	CancelCheckInterval int

	Smoothing             bool
	SmoothingSubdivisions int
	// DirectShortcut skips the search when start and goal see each other.
	DirectShortcut bool
}

// DefaultOptions returns A* with the Euclidean heuristic and string pulling.
func DefaultOptions() Options {
	return Options{
		Algorithm:           AStar,
		Heuristic:           Euclidean,
		HeuristicScale:      1,
		Cost:                DistanceCost,
		FixedCost:           1,
		MaxIterations:       10000,
		CancelCheckInterval: 64,
		Smoothing:           true,
	}
}

func (o Options) withDefaults() Options {
	if o.HeuristicScale <= 0 {
		o.HeuristicScale = 1
	}
	if o.FixedCost <= 0 {
		o.FixedCost = 1
	}
	if o.CancelCheckInterval <= 0 {
		o.CancelCheckInterval = 64
	}
	return o
}
