package shapes

type fixture struct {
	Name string
}
