package tools

type Config struct {
	Name string
}
