package infra

import (
	"fmt"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner displays the startup banner with the storage backend in use.
func PrintBanner(cfg *Config) {
	driver := strings.ToUpper(cfg.Storage.Driver)

	color := ColorGreen
	storeDesc := "LOCAL FILES"

	switch cfg.Storage.Driver {
	case DriverMemory:
		color = ColorYellow
		storeDesc = "IN-MEMORY (NOT PERSISTED)"
	case DriverSQLite:
		color = ColorCyan
		storeDesc = "SQLITE (WAL)"
	case DriverRedis:
		color = ColorCyan
		storeDesc = "REDIS " + cfg.Storage.Redis.Addr
	}

	fmt.Println()
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#               📈 Crypto Dashboard                       #%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#   STORAGE: %-36s #%s\n", color, driver, ColorReset)
	fmt.Printf("%s#   BACKEND: %-36s #%s\n", color, storeDesc, ColorReset)
	fmt.Printf("%s#   LISTEN:  %-36s #%s\n", color, cfg.Server.Addr, ColorReset)
	fmt.Printf("%s#   VERSION: %-36s #%s\n", color, cfg.App.Version, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)

	if cfg.Storage.Driver == DriverMemory {
		fmt.Printf("%s#   ⚠️  Portfolio and alerts are lost on exit            #%s\n", ColorRed, ColorReset)
	}

	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Println()
}
