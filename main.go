package main

import (
	"errors"
	"fmt"
	"os"
	_ "time/tzdata"

	"rental-digest/cli"
	"rental-digest/models"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, models.ErrFatalConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
