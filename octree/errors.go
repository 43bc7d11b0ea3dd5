package octree

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Orrigine/OverScoped/geometry"
)

var (
	// ErrInvalidVolume is returned for empty bounds or an unsupported depth.
	ErrInvalidVolume = errors.New("invalid volume")
	// ErrVolumeTooSmallForDepth is returned when subdividing to the configured
	// depth would produce leaves under the minimum leaf size.
	ErrVolumeTooSmallForDepth = errors.New("volume too small for depth")
	// ErrCollisionQueryFailed is matched by every error coming from the
	// collision source during a build.
	ErrCollisionQueryFailed = errors.New("collision query failed")
)

// CollisionError reports the box the collision source failed on.
type CollisionError struct {
	Box geometry.AABB
	Err error
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("collision query failed for box %v-%v: %v", e.Box.Min, e.Box.Max, e.Err)
}

func (e *CollisionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCollisionQueryFailed) hold for every CollisionError.
func (e *CollisionError) Is(target error) bool {
	return target == ErrCollisionQueryFailed
}
