package main

import "example.com/lib"

func main() {
	total := lib.Sum(1, 2)
	_ = total
}
