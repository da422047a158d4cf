package main

import (
	"context"

	"stockwise/cmd"
)

func main() {
	cmd.Execute(context.Background())
}
