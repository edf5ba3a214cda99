package main

import (
	"example.com/demo/shapes"
	"fmt"
)

func main() {
	origin := shapes.Point{X: 1, Y: 2}
	color := shapes.Green
	fmt.Println(origin, color)
}
