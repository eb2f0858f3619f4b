package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/google/shlex"

	"rangenode/host/monitor"
	"rangenode/host/serial"
)

var (
	device    = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud      = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	verbose   = flag.Bool("verbose", false, "Print every sample as it arrives")
	mqttURL   = flag.String("mqtt", "", "MQTT broker URL (e.g. tcp://localhost:1883); empty disables publishing")
	mqttTopic = flag.String("mqtt-topic", "rangenode/samples", "MQTT topic for sample records")
)

func main() {
	flag.Parse()

	fmt.Println("rangenode host monitor")
	fmt.Println()

	board := monitor.NewBoard()

	fmt.Printf("Connecting to %s...\n", *device)
	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	if err := board.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer board.Close()

	stats := monitor.NewSessionStats()

	var publisher *monitor.Publisher
	if *mqttURL != "" {
		var err error
		publisher, err = monitor.NewPublisher(*mqttURL, "rangenode-host", *mqttTopic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer publisher.Close()
		fmt.Printf("Publishing samples to %s (%s)\n", *mqttURL, *mqttTopic)
	}

	// printNext makes the next sample print once, for the query command.
	var printNext uint32

	board.OnText(func(data []byte) {
		// Firmware log lines pass through untouched.
		fmt.Print(string(data))
	})
	board.OnFrame(func(f *monitor.Frame) {
		fmt.Println(f.String())
	})
	board.OnSample(func(s monitor.Sample) {
		stats.Add(s)
		if publisher != nil {
			if err := publisher.Publish(s); err != nil {
				fmt.Fprintf(os.Stderr, "mqtt: %v\n", err)
			}
		}
		if *verbose || atomic.SwapUint32(&printNext, 0) != 0 {
			printSample(board, s)
		}
	})

	fmt.Println("Retrieving dictionary...")
	if err := board.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Dictionary retrieved (%d bytes compressed)\n\n", len(board.RawDictionary()))
	fmt.Print(board.Dictionary().Summary())
	fmt.Println()

	fmt.Println("Enter commands ('help' lists them, 'quit' exits):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		words, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(words) == 0 {
			continue
		}

		if done := runCommand(board, stats, &printNext, words); done {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// runCommand executes one console line. Returns true when the session
// should end.
func runCommand(board *monitor.Board, stats *monitor.SessionStats, printNext *uint32, words []string) bool {
	var err error

	switch words[0] {
	case "quit", "exit", "q":
		fmt.Println("Goodbye!")
		return true

	case "help", "?":
		printHelp()

	case "dict":
		fmt.Print(board.Dictionary().Summary())

	case "raw":
		var raw []byte
		raw, err = monitor.Inflate(board.RawDictionary())
		if err == nil {
			fmt.Printf("%s\n", raw)
		}

	case "query":
		atomic.StoreUint32(printNext, 1)
		err = board.SendNamed("query_range")

	case "start":
		err = board.SendNamed("ranging_start")

	case "stop":
		err = board.SendNamed("ranging_stop")

	case "status":
		err = board.SendNamed("get_status")

	case "uptime":
		err = board.SendNamed("get_uptime")

	case "interval":
		if len(words) != 2 {
			err = fmt.Errorf("usage: interval <ms>")
			break
		}
		var ms uint64
		ms, err = strconv.ParseUint(words[1], 10, 32)
		if err != nil {
			err = fmt.Errorf("bad interval %q: %w", words[1], err)
			break
		}
		err = board.SendNamed("set_report_interval", uint32(ms))

	case "stats":
		fmt.Println(stats.Snapshot().String())

	case "clear":
		stats.Reset()
		fmt.Println("Session statistics cleared")

	case "reset":
		err = board.SendNamed("reset")
		if err == nil {
			fmt.Println("Board is rebooting; quit and reconnect")
		}

	default:
		fmt.Printf("Unknown command: %s ('help' lists commands)\n", words[0])
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return false
}

// printSample renders one sample with the status name from the dictionary.
func printSample(board *monitor.Board, s monitor.Sample) {
	status := strconv.FormatUint(uint64(s.Status), 10)
	if dict := board.Dictionary(); dict != nil {
		status = dict.StatusName(s.Status)
	}
	fmt.Printf("range %dmm status=%s seq=%d clock=%d\n", s.DistanceMM, status, s.Seq, s.Clock)
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help            - Show this help message")
	fmt.Println("  dict            - Print dictionary summary")
	fmt.Println("  raw             - Print the dictionary JSON")
	fmt.Println("  query           - Request and print the latest sample")
	fmt.Println("  start           - Start continuous ranging")
	fmt.Println("  stop            - Stop continuous ranging")
	fmt.Println("  status          - Print ranging status")
	fmt.Println("  interval <ms>   - Set the report interval")
	fmt.Println("  uptime          - Print board uptime")
	fmt.Println("  stats           - Print session statistics")
	fmt.Println("  clear           - Reset session statistics")
	fmt.Println("  reset           - Reboot the board")
	fmt.Println("  quit/exit/q     - Exit the program")
	fmt.Println()
}
