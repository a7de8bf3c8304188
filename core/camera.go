package core

import "github.com/go-gl/mathgl/mgl32"

type Camera struct {
	Position mgl32.Vec3
	Center   mgl32.Vec3
	Up       mgl32.Vec3
	FovY     float32
}
