// Command echobeat runs one side of the heartbeat echo protocol.
//
//	echobeat responder --port 50007
//	echobeat initiator --host 10.0.0.5 --period 30s
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "echobeat:", err)
		os.Exit(1)
	}
}
