package main

import (
	"errors"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/viant/mcp-proxy/bridge"
)

func main() {
	if err := bridge.Run(os.Args[1:]); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}
}
