package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"bcbradar/internal/app"
)

func main() {
	port := flag.Int("port", 0, "listen port override (defaults to configuration)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(versionString())
		return
	}

	// Flag overrides land on the env layer, which config.Load reads last.
	if *port > 0 {
		os.Setenv("RADAR_SERVER_PORT", strconv.Itoa(*port))
	}

	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func versionString() string {
	return fmt.Sprintf("bcbradar %s (build %s)", app.VERSION, app.BuildID)
}
