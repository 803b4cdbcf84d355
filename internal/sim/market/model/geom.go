package model

import "math"

// Vec3 is a world position. Y is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Dist(o Vec3) float64 {
	d := v.Sub(o)
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// Snap aligns the horizontal axes to the half-tile grid.
func (v Vec3) Snap() Vec3 {
	return Vec3{X: math.Round(v.X*2) / 2, Y: v.Y, Z: math.Round(v.Z*2) / 2}
}

// RotateY turns v around the vertical axis by r quarter turns.
func (v Vec3) RotateY(r Rotation) Vec3 {
	out := v
	for i := 0; i < int(r.Norm()); i++ {
		out = Vec3{X: out.Z, Y: out.Y, Z: -out.X}
	}
	return out
}

// Rotation is a cardinal step: 0, 90, 180 or 270 degrees.
type Rotation uint8

func (r Rotation) Norm() Rotation { return r % 4 }
func (r Rotation) Next() Rotation { return (r.Norm() + 1) % 4 }
func (r Rotation) Degrees() int   { return int(r.Norm()) * 90 }
