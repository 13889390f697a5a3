package cmd

import (
	"fmt"
	"math/rand"

	"github.com/achilleasa/polaris-bvh/asset/scene"
	"github.com/achilleasa/polaris-bvh/bvh"
	"github.com/achilleasa/polaris-bvh/types"
)

// Generate rays whose origins are uniformly distributed inside the scene
// bounds and whose directions are uniformly distributed over the sphere.
func randomRays(bounds types.AABB, count int, seed int64) []bvh.Ray {
	rng := rand.New(rand.NewSource(seed))
	if bounds.IsEmpty() {
		bounds = types.AABB{Min: types.XYZ(-1, -1, -1), Max: types.XYZ(1, 1, 1)}
	}
	center, extent := bounds.Center(), bounds.Extent().Mul(0.5)

	rays := make([]bvh.Ray, count)
	for index := range rays {
		offset := scene.RandomPoint(rng, 1)
		origin := types.XYZ(
			center[0]+offset[0]*extent[0],
			center[1]+offset[1]*extent[1],
			center[2]+offset[2]*extent[2],
		)
		rays[index] = bvh.NewRay(origin, scene.RandomDirection(rng))
	}
	return rays
}

// Run rays through the BVH and a brute-force intersector and report any
// ray whose closest or any hit result differs.
func verifyQueries(tree *bvh.BVH, ref *bvh.Reference, rays []bvh.Ray) error {
	mismatches := 0
	for index, ray := range rays {
		got, exp := bvh.NewIntersection(), bvh.NewIntersection()
		gotHit, expHit := tree.Intersect(ray, &got), ref.Intersect(ray, &exp)
		if gotHit != expHit || (gotHit && (got.PrimID != exp.PrimID || got.TriID != exp.TriID || got.Dist != exp.Dist)) {
			logger.Warningf("ray %d (%v -> %v): closest hit mismatch; expected %+v (hit: %t); got %+v (hit: %t)", index, ray.Origin, ray.Dir, exp, expHit, got, gotHit)
			mismatches++
			continue
		}

		if tree.Occluded(ray) != ref.Occluded(ray) {
			logger.Warningf("ray %d (%v -> %v): any hit mismatch", index, ray.Origin, ray.Dir)
			mismatches++
		}
	}

	if mismatches != 0 {
		return fmt.Errorf("verification failed: %d out of %d rays returned different results", mismatches, len(rays))
	}
	logger.Noticef("verified %d rays against brute-force intersection", len(rays))
	return nil
}
