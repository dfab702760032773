package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	drmoutput "github.com/tmarsh-oss/go-drmoutput"
	"github.com/tmarsh-oss/go-drmoutput/internal/logging"
)

func main() {
	var (
		devPath    = flag.String("device", "", "DRM device node to open (empty: resolve the seat's primary GPU)")
		seat       = flag.String("seat", "seat0", "Seat to resolve the primary GPU on, if -device is empty")
		useSession = flag.Bool("session", false, "Acquire the device fd through logind instead of opening it directly")
		verbose    = flag.Bool("v", false, "Verbose output")
		watch      = flag.Duration("watch", 0, "Keep running and print events for this long (0: exit after the initial dump)")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	params := drmoutput.DeviceParams{
		DevicePath: *devPath,
		Seat:       *seat,
		UseSession: *useSession,
	}

	dev, err := drmoutput.Open(params, &drmoutput.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to open device", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	dumpOutputs(dev)

	if *watch <= 0 {
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	deadline := time.After(*watch)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	fmt.Printf("\nwatching for hotplug/render events for %s (Ctrl+C to stop early)...\n", *watch)
	for {
		select {
		case <-sigCh:
			return
		case <-deadline:
			return
		case <-ticker.C:
			for {
				ev, ok := dev.NextEvent()
				if !ok {
					break
				}
				printEvent(ev)
			}
		}
	}
}

func dumpOutputs(dev *drmoutput.Device) {
	outputs := dev.Outputs()
	fmt.Printf("%d output(s):\n", len(outputs))
	for connID, out := range outputs {
		mode, hasMode := out.CurrentMode()
		fmt.Printf("  connector %d: name=%q state=%v", connID, out.Name(), out.State())
		if hasMode {
			fmt.Printf(" mode=%dx%d@%dHz", mode.Width, mode.Height, mode.RefreshHz)
		}
		fmt.Println()
	}
}

func printEvent(ev drmoutput.Event) {
	switch ev.Kind {
	case drmoutput.EventRender:
		fmt.Printf("render requested: connector %d\n", ev.ConnectorID)
	case drmoutput.EventDisplayAdded:
		fmt.Printf("display added: connector %d\n", ev.ConnectorID)
	case drmoutput.EventDisplayRemoved:
		fmt.Printf("display removed: connector %d\n", ev.ConnectorID)
	}
}
