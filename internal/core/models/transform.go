package models

import "math"

type Vector struct {
	X, Y, Z float64
}

func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vector) Scale(f float64) Vector {
	return Vector{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

func (v Vector) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Quat is a rotation quaternion.
type Quat struct {
	X, Y, Z, W float64
}

var IdentityQuat = Quat{W: 1}

type Transform struct {
	Location Vector
	Rotation Quat
	Scale    Vector
}

// IdentityTransform has no translation, no rotation and unit scale.
var IdentityTransform = Transform{
	Rotation: IdentityQuat,
	Scale:    Vector{X: 1, Y: 1, Z: 1},
}

// At returns the identity transform moved to loc.
func At(loc Vector) Transform {
	t := IdentityTransform
	t.Location = loc
	return t
}
