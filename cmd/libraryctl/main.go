package main

import (
	"fmt"
	"os"

	"github.com/Astemirdum/lending-service/library/app"
)

func main() {
	if err := app.NewCtlCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
