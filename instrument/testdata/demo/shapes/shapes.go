package shapes

type Point struct {
	X, Y int
}

type Color int

const (
	Red Color = iota
	Green
)
