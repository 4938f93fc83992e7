package main

import (
	"github.com/joho/godotenv"

	"slunch/internal/cli"
)

var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	cli.Execute(version)
}
