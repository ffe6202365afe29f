package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/pointillist/internal/config"
	"github.com/banshee-data/pointillist/internal/db"
	"github.com/banshee-data/pointillist/internal/monitoring"
	"github.com/banshee-data/pointillist/internal/serialmux"
	"github.com/banshee-data/pointillist/internal/version"
)

var (
	configFile = flag.String("config", "", "Configuration file (default: "+config.DefaultConfigPath+" when present)")
	debugMode  = flag.Bool("debug", false, "Run without hardware: serial writes and pump steps are logged only")
	devMode    = flag.Bool("dev", false, "Alias for --debug")
	portFlag   = flag.String("port", "", "Serial port, overriding the config file")
	dbPathFlag = flag.String("db-path", "", "Job database, overriding the config file")
	quiet      = flag.Bool("quiet", false, "Silence library logging")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	if *quiet {
		monitoring.SetLogger(nil)
	}

	switch command {
	case "version":
		fmt.Printf("pointillist %s\n", version.String())
		return
	case "help":
		printUsage()
		return
	case "ports":
		if err := listPorts(os.Stdout); err != nil {
			log.Fatalf("Failed to list serial ports: %v", err)
		}
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	a := &app{
		cfg:     cfg,
		dev:     *debugMode || *devMode,
		port:    *portFlag,
		dbPath:  *dbPathFlag,
		in:      os.Stdin,
		out:     os.Stdout,
		fd:      int(os.Stdin.Fd()),
		factory: serialmux.RealPortFactory,
	}

	switch command {
	case "generate":
		err = a.generate(args)
	case "send":
		err = a.send(args)
	case "serve":
		err = a.serve(args)
	case "setup":
		err = a.setup(args)
	case "pump":
		err = a.pump(args)
	case "palette":
		err = a.palette(args)
	case "migrate":
		err = db.RunMigrateCommand(args, a.databasePath())
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pointillist - paint-dot plotter driver

Usage: pointillist [global flags] <command> [options]

Commands:
  generate   Turn an image into a dot-painting program
  send       Stream a program to the plotter
  serve      Run the HTTP API, admin routes and health service
  setup      Write controller settings and home the machine
  pump       Move the syringe pump by hand
  palette    Show the configured paints or suggest paints for an image
  migrate    Manage the job database schema
  ports      List serial ports on this host
  version    Show pointillist version
  help       Show this help message

Global Flags:
  --config <file>    Configuration file (default: config/plot.defaults.json when present)
  --port <device>    Serial port (overrides serial.port)
  --db-path <file>   Job database (overrides server.db_path)
  --debug, --dev     No hardware: serial writes are acknowledged and logged,
                     pump pins are simulated
  --quiet            Silence library logging

Examples:
  # Generate a program and a dot preview
  pointillist generate --dots preview.png portrait.jpg portrait.gcode

  # Paint it, recording the run against a stored job
  pointillist --port /dev/ttyACM0 send --job 3f2a... portrait.gcode

  # Try the API without a plotter attached
  pointillist --dev serve

  # Suggest five paints for an image
  pointillist palette suggest -k 5 portrait.jpg

Run 'pointillist <command> -h' for command options.`)
}

func listPorts(out io.Writer) error {
	ports, err := serialmux.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(out, p)
	}
	return nil
}
