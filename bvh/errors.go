package bvh

import "errors"

var (
	ErrInvalidMesh      = errors.New("bvh: invalid mesh")
	ErrArenaExhausted   = errors.New("bvh: build arena exhausted")
	ErrInvalidStructure = errors.New("bvh: invalid structure")
)
