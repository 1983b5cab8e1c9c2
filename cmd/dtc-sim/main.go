// Command dtc-sim is the host-side companion console for the DTC-1200
// transport controller: it opens the serial link to the board and drives
// an interactive command loop over it.
package main

import (
	"flag"
	"fmt"
	"os"

	"dtc1200/host/cli"
	"dtc1200/host/link"
	"dtc1200/internal/diag"
)

func main() {
	device := flag.String("device", "/dev/ttyACM0", "serial device connected to the controller")
	baud := flag.Int("baud", 115200, "serial baud rate")
	verbose := flag.Bool("verbose", false, "print frame-level diagnostic lines")
	flag.Parse()

	if *verbose {
		diag.SetEnabled(true)
		diag.SetWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
	}

	conn := link.New()
	if err := conn.Connect(*device, *baud); err != nil {
		fmt.Fprintf(os.Stderr, "dtc-sim: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	console := cli.New(conn, os.Stdin, os.Stdout)
	if err := console.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dtc-sim: %v\n", err)
		os.Exit(1)
	}
}
