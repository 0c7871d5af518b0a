package db

import (
	"context"

	"hermannm.dev/cube/cube"
	"hermannm.dev/wrap"
)

// WalkVisitor is called for every coordinate below the root, with its full value path.
type WalkVisitor func(path []string, label string) error

// Walk drills the whole hierarchy of a dimension breadth-first, down to maxDepth levels (all
// levels if maxDepth is 0), and visits every coordinate.
func Walk(
	ctx context.Context,
	driller cube.DrillFetcher,
	space string,
	dimension cube.Dimension,
	maxDepth int,
	visit WalkVisitor,
) error {
	depth := dimension.Depth()
	if maxDepth > 0 {
		depth = min(depth, maxDepth)
	}

	level := [][]string{{}}
	for range depth {
		var next [][]string
		for _, parent := range level {
			children, err := driller.Drill(
				ctx, cube.DrillQuery{Space: space, Dimension: dimension.Name, Value: parent},
			)
			if err != nil {
				return wrap.Errorf(err, "failed to drill '%s'", cube.Path(parent...))
			}

			for _, child := range children {
				path := append(append(make([]string, 0, len(parent)+1), parent...), child.Value)
				if err := visit(path, child.Label); err != nil {
					return err
				}
				next = append(next, path)
			}
		}
		level = next
	}

	return nil
}
