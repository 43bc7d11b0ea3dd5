package octree

// Occupancy is the classification of a node against the collision world.
type Occupancy uint8

const (
	Unbuilt Occupancy = iota
	Open
	Blocked
	Mixed
)

func (o Occupancy) String() string {
	switch o {
	case Open:
		return "open"
	case Blocked:
		return "blocked"
	case Mixed:
		return "mixed"
	default:
		return "unbuilt"
	}
}

// MarshalText encodes the occupancy by name for JSON payloads.
func (o Occupancy) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
