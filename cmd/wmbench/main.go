// Command wmbench measures how well audio watermarks survive voice
// conversion.
//
// Usage:
//
//	wmbench run [--config file] [--rows n] [--out file] [--dir corpus]
//	wmbench providers [--config file]
//
// Configuration is read from defaults, then the YAML file, then the
// environment (a .env file is honored), then flags.
package main

import (
	"fmt"
	"os"

	//Import registered watermarking algorithms here
	_ "wmbench/internal/watermarking/remote"
	_ "wmbench/internal/watermarking/spread"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
