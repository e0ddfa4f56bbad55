package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigureInteractive lets the operator adjust desk settings from the menu.
func ConfigureInteractive(cfg *Config, in io.Reader) error {
	reader := bufio.NewReader(in)

	for {
		fmt.Println("\n⚙️  Desk Settings:")
		fmt.Println("1. View Current Configuration")
		fmt.Println("2. Trigger Monitor")
		fmt.Println("3. Scan & Export")
		fmt.Println("4. Save & Exit")
		fmt.Println("5. Exit Without Saving")
		fmt.Print("Select option: ")

		choice, err := reader.ReadString('\n')
		if err != nil && choice == "" {
			return nil
		}

		switch strings.TrimSpace(choice) {
		case "1":
			DisplayConfiguration(cfg, os.Stdout)
		case "2":
			configureTriggers(cfg, reader)
		case "3":
			configureScan(cfg, reader)
		case "4":
			if err := cfg.Validate(); err != nil {
				fmt.Printf("❌ %v\n", err)
				continue
			}
			if err := SaveConfig(cfg); err != nil {
				fmt.Printf("❌ Error saving config: %v\n", err)
				continue
			}
			fmt.Println("✅ Configuration saved successfully!")
			return nil
		case "5":
			return nil
		default:
			fmt.Println("❌ Invalid option")
		}
	}
}

func DisplayConfiguration(cfg *Config, w io.Writer) {
	fmt.Fprintln(w, "\n📋 Current Configuration:")
	if cfg.Path() != "" {
		fmt.Fprintf(w, "Loaded from: %s\n", cfg.Path())
	}

	fmt.Fprintln(w, "\n=== Broker ===")
	fmt.Fprintf(w, "Base URL: %s\n", cfg.Broker.BaseURL)
	fmt.Fprintf(w, "Credentials: %s\n", setStr(cfg.Broker.APIKey != "" && cfg.Broker.APISecret != ""))

	fmt.Fprintln(w, "\n=== Trigger Monitor ===")
	fmt.Fprintf(w, "Poll Interval: %s\n", cfg.Triggers.PollInterval)
	fmt.Fprintf(w, "Settle Delay: %s\n", cfg.Triggers.SettleDelay)
	fmt.Fprintf(w, "Sell-off Window: %s-%s %s\n", cfg.Triggers.SellOffStart, cfg.Triggers.SellOffEnd, cfg.Triggers.Timezone)
	fmt.Fprintf(w, "Auto Start: %v\n", cfg.Triggers.AutoStart)

	fmt.Fprintln(w, "\n=== Scan ===")
	fmt.Fprintf(w, "Universe File: %s\n", cfg.Scan.UniverseFile)
	fmt.Fprintf(w, "History: %d days of %s bars (%s feed)\n", cfg.Scan.HistoryDays, cfg.MarketData.Timeframe, cfg.MarketData.Feed)
	fmt.Fprintf(w, "Export Dir: %s (min bear score %.2f)\n", cfg.Export.Dir, cfg.Export.MinBearScore)

	fmt.Fprintln(w, "\n=== Storage ===")
	fmt.Fprintf(w, "Postgres: %s@%s:%d/%s\n", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	fmt.Fprintf(w, "Redis Cache: %v (%s)\n", cfg.Redis.Enabled, cfg.Redis.Addr)
}

func configureTriggers(cfg *Config, reader *bufio.Reader) {
	fmt.Println("\n🎯 Configure Trigger Monitor (Enter keeps the current value):")

	fmt.Printf("Current poll interval: %s\n", cfg.Triggers.PollInterval)
	fmt.Print("New poll interval (e.g. 30s): ")
	if d, ok := readDuration(reader); ok {
		cfg.Triggers.PollInterval = d
	}

	fmt.Printf("Current settle delay: %s\n", cfg.Triggers.SettleDelay)
	fmt.Print("New settle delay (e.g. 2s): ")
	if d, ok := readDuration(reader); ok {
		cfg.Triggers.SettleDelay = d
	}

	fmt.Printf("Current sell-off start: %s\n", cfg.Triggers.SellOffStart)
	fmt.Print("New sell-off start (HH:MM): ")
	if s := readLine(reader); s != "" {
		cfg.Triggers.SellOffStart = s
	}

	fmt.Printf("Current sell-off end: %s\n", cfg.Triggers.SellOffEnd)
	fmt.Print("New sell-off end (HH:MM): ")
	if s := readLine(reader); s != "" {
		cfg.Triggers.SellOffEnd = s
	}

	if _, err := cfg.SellOffWindow(); err != nil {
		fmt.Printf("⚠️  Sell-off window is invalid: %v\n", err)
		return
	}
	fmt.Println("✅ Trigger monitor updated")
}

func configureScan(cfg *Config, reader *bufio.Reader) {
	fmt.Println("\n🔎 Configure Scan & Export (Enter keeps the current value):")

	fmt.Printf("Current universe file: %s\n", cfg.Scan.UniverseFile)
	fmt.Print("New universe file: ")
	if s := readLine(reader); s != "" {
		cfg.Scan.UniverseFile = s
	}

	fmt.Printf("Current history window: %d days\n", cfg.Scan.HistoryDays)
	fmt.Print("New history window (days): ")
	if val, err := strconv.Atoi(readLine(reader)); err == nil && val >= 5 {
		cfg.Scan.HistoryDays = val
	}

	fmt.Printf("Current export min bear score: %.2f\n", cfg.Export.MinBearScore)
	fmt.Print("New min bear score: ")
	if val, err := strconv.ParseFloat(readLine(reader), 64); err == nil && val >= 0 {
		cfg.Export.MinBearScore = val
	}

	fmt.Println("✅ Scan settings updated")
}

// SaveConfig writes cfg back to the file it was loaded from, or config.yaml in
// the working directory. Secrets are never written.
func SaveConfig(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	path := cfg.Path()
	if path == "" {
		path = fileName
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	cfg.path = path
	return nil
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func readDuration(reader *bufio.Reader) (time.Duration, bool) {
	d, err := time.ParseDuration(readLine(reader))
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func setStr(ok bool) string {
	if ok {
		return "✅ Set"
	}
	return "❌ Missing"
}
