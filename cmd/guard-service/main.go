package main

import (
	"os"

	"github.com/contentguard/contentguard/guardservice"
)

func main() {
	if err := guardservice.Run(); err != nil {
		os.Exit(1)
	}
}
