package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	dl1 "github.com/cta-exp/dl1reader_go/pkg"
)

var configuration dl1.Configuration

var (
	logger         Logger
	VerbosityLevel int
)

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

// main only reports the outcome. run owns the source handle, so its deferred
// Close runs no matter how the event loop ends.
func main() {
	if err := run(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	var err error
	configuration, err = dl1.LoadConfiguration(*configFilename)
	if err != nil {
		return fmt.Errorf("error reading configuration file: %w", err)
	}
	dl1.SetConfiguration(configuration)
	dl1.SetLogger(logger)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	compatible, err := dl1.IsCompatible(configuration.FileIn)
	if err != nil {
		return err
	}
	if !compatible {
		return fmt.Errorf("%s is not a %s file", configuration.FileIn, "DL1 Data Product")
	}

	source, err := dl1.NewSource(configuration.FileIn, configuration)
	if err != nil {
		return fmt.Errorf("error opening event source: %w", err)
	}
	defer source.Close()

	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Number of events: %d", source.Len())
		logger.Info(message, "main")
		message = fmt.Sprintf("Origin: %s", source.Origin())
		logger.Info(message, "main")
		message = fmt.Sprintf("Observation blocks: %v", source.ObsIDs())
		logger.Info(message, "main")
		message = fmt.Sprintf("Telescopes in subarray: %d", len(source.Subarray().Tels))
		logger.Info(message, "main")
	}

	start := time.Now()
	evtCount := 0
	for {
		event, err := source.NextEvent()
		if err != nil {
			if err != io.EOF {
				return fmt.Errorf("error reading event: %w", err)
			}
			break
		}
		evtCount++
		if VerbosityLevel > 1 {
			message := fmt.Sprintf("Event %d with ID %d: %d telescopes triggered, %d with data",
				event.SequenceIndex, event.Index.EventID,
				len(event.Trigger.TelsWithTrigger), len(event.Tel))
			logger.Info(message, "main")
		}
	}

	duration := time.Since(start)
	fmt.Println("Total events processed: ", evtCount)
	fmt.Printf("Total time: %d ms\n", duration.Milliseconds())
	return nil
}

func printConfiguration(config dl1.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Allowed telescopes: %v", config.AllowedTels), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
}
