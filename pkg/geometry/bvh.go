package geometry

import (
	"sort"

	"github.com/df07/go-pathtracer/pkg/core"
	"github.com/df07/go-pathtracer/pkg/material"
)

// Bounded is a shape with finite extent
type Bounded interface {
	Shape
	BoundingBox() AABB
}

// BVHNode represents a node in the Bounding Volume Hierarchy
type BVHNode struct {
	BoundingBox AABB
	Left        *BVHNode
	Right       *BVHNode
	Shapes      []Bounded // Leaf shapes (nil for internal nodes)
}

// BVH answers the same nearest-hit queries as a HittableList over the same
// shapes, visiting only subtrees whose boxes the ray crosses. Unbounded shapes
// such as planes are kept beside the tree and scanned linearly.
type BVH struct {
	Root      *BVHNode
	unbounded []Shape
	count     int
}

// Leaf threshold: if we have this many or fewer shapes, store them in a leaf node
const leafThreshold = 8

// NewBVH builds a hierarchy over shapes. The input slice is not modified.
func NewBVH(shapes []Shape) *BVH {
	bvh := &BVH{count: len(shapes)}
	var bounded []Bounded
	for _, shape := range shapes {
		if b, ok := shape.(Bounded); ok {
			bounded = append(bounded, b)
		} else {
			bvh.unbounded = append(bvh.unbounded, shape)
		}
	}
	if len(bounded) > 0 {
		bvh.Root = buildBVH(bounded)
	}
	return bvh
}

// buildBVH splits at the median along the longest axis until leaves are small
func buildBVH(shapes []Bounded) *BVHNode {
	box := shapes[0].BoundingBox()
	for _, shape := range shapes[1:] {
		box = box.Union(shape.BoundingBox())
	}

	if len(shapes) <= leafThreshold {
		return &BVHNode{BoundingBox: box, Shapes: shapes}
	}

	axis := box.LongestAxis()
	sort.SliceStable(shapes, func(i, j int) bool {
		return component(shapes[i].BoundingBox().Center(), axis) < component(shapes[j].BoundingBox().Center(), axis)
	})

	mid := len(shapes) / 2
	return &BVHNode{
		BoundingBox: box,
		Left:        buildBVH(shapes[:mid]),
		Right:       buildBVH(shapes[mid:]),
	}
}

// Len returns the number of shapes held, bounded or not
func (bvh *BVH) Len() int {
	return bvh.count
}

// Hit returns the closest intersection in (tMin, tMax)
func (bvh *BVH) Hit(ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool) {
	// Boxes alone would silently miss a zero direction ray
	if ray.Direction.LengthSquared() == 0 {
		core.Invariantf(core.ErrDegenerateRay, "ray %v has zero-length direction", ray.Direction)
	}

	var closestHit *material.HitRecord
	closestSoFar := tMax

	for _, shape := range bvh.unbounded {
		if hit, isHit := shape.Hit(ray, tMin, closestSoFar); isHit {
			closestSoFar = hit.T
			closestHit = hit
		}
	}
	if bvh.Root != nil {
		if hit, isHit := bvh.hitNode(bvh.Root, ray, tMin, closestSoFar); isHit {
			closestHit = hit
		}
	}
	return closestHit, closestHit != nil
}

func (bvh *BVH) hitNode(node *BVHNode, ray core.Ray, tMin, tMax float64) (*material.HitRecord, bool) {
	if !node.BoundingBox.Hit(ray, tMin, tMax) {
		return nil, false
	}

	var closestHit *material.HitRecord
	closestSoFar := tMax

	if node.Shapes != nil {
		for _, shape := range node.Shapes {
			if hit, isHit := shape.Hit(ray, tMin, closestSoFar); isHit {
				closestSoFar = hit.T
				closestHit = hit
			}
		}
		return closestHit, closestHit != nil
	}

	for _, child := range []*BVHNode{node.Left, node.Right} {
		if child == nil {
			continue
		}
		if hit, isHit := bvh.hitNode(child, ray, tMin, closestSoFar); isHit {
			closestSoFar = hit.T
			closestHit = hit
		}
	}
	return closestHit, closestHit != nil
}

// depth returns the height of the tree, 0 when empty
func (bvh *BVH) depth() int {
	var walk func(*BVHNode) int
	walk = func(n *BVHNode) int {
		if n == nil {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(bvh.Root)
}
