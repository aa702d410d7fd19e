package voxel

import "errors"

var (
	ErrStreamLength = errors.New("voxel: byte stream length does not match block size")
	ErrBadState     = errors.New("voxel: invalid cell state")
)
