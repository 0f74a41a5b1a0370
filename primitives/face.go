package primitives

import (
	"encoding/json"
	"fmt"
)

type Face uint8

// Order matches the material slots of a cuboid mesh.
const (
	FaceSouth Face = iota
	FaceNorth
	FaceEast
	FaceWest
	FaceUp
	FaceDown
)

var AllFaces = [6]Face{FaceSouth, FaceNorth, FaceEast, FaceWest, FaceUp, FaceDown}

var faceNames = [6]string{"south", "north", "east", "west", "up", "down"}

var faceOffsets = [6][3]int{
	{0, 0, 1},
	{0, 0, -1},
	{1, 0, 0},
	{-1, 0, 0},
	{0, 1, 0},
	{0, -1, 0},
}

func (f Face) String() string {
	if int(f) >= len(faceNames) {
		return fmt.Sprintf("face(%d)", f)
	}
	return faceNames[f]
}

// Offset is the neighbour direction the face looks at.
func (f Face) Offset() (dx, dy, dz int) {
	o := faceOffsets[f]
	return o[0], o[1], o[2]
}

func (f Face) Valid() bool {
	return int(f) < len(faceNames)
}

func ParseFace(s string) (Face, error) {
	if s == "bottom" {
		return FaceDown, nil
	}
	for i, n := range faceNames {
		if n == s {
			return Face(i), nil
		}
	}
	return 0, fmt.Errorf("unknown face %q", s)
}

func (f Face) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Face) UnmarshalText(b []byte) error {
	p, err := ParseFace(string(b))
	if err != nil {
		return err
	}
	*f = p
	return nil
}

func (f *Face) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return f.UnmarshalText([]byte(s))
}

var (
	rotX90 = [6]Face{FaceUp, FaceDown, FaceEast, FaceWest, FaceNorth, FaceSouth}
	rotY90 = [6]Face{FaceWest, FaceEast, FaceSouth, FaceNorth, FaceUp, FaceDown}
)

// RotateX turns the direction around the X axis the way blockstate "x" rotates models.
// Degrees are truncated to quarter turns.
func (f Face) RotateX(degrees int) Face {
	for i := quarterTurns(degrees); i > 0; i-- {
		f = rotX90[f]
	}
	return f
}

// RotateY turns the direction around the Y axis the way blockstate "y" rotates models.
func (f Face) RotateY(degrees int) Face {
	for i := quarterTurns(degrees); i > 0; i-- {
		f = rotY90[f]
	}
	return f
}

func quarterTurns(degrees int) int {
	return ((degrees/90)%4 + 4) % 4
}
