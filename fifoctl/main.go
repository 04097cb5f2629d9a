// Command fifoctl brings up a simulated DMA FIFO block and optionally serves
// it for monitoring.
package main

import "github.com/sarchlab/dmafifo/fifoctl/cmd"

func main() {
	cmd.Execute()
}
