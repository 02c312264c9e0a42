// ABOUTME: Entry point for picohost-gateway, the HTTP front door to the agent bus
// ABOUTME: Provides serve, init, health, and ask subcommands

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/picohost-gateway/internal/config"
	"github.com/2389/picohost-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _                _               _
 _ __ (_) ___ ___   ___| |__   ___  ___| |_
| '_ \| |/ __/ _ \ / _ \ '_ \ / _ \/ __| __|
| |_) | | (_| (_) | (_) | | | | (_) \__ \ |_
| .__/|_|\___\___/ \___/|_| |_|\___/|___/\__|
|_|                                   gateway
`

// getConfigPath returns the path to the gateway config file and whether it
// was chosen explicitly.
// Priority: PICOHOST_CONFIG env var > XDG_CONFIG_HOME/picohost/gateway.yaml > ~/.config/picohost/gateway.yaml
func getConfigPath() (string, bool) {
	if envPath := os.Getenv("PICOHOST_CONFIG"); envPath != "" {
		return envPath, true
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml", false // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "picohost", "gateway.yaml"), false
}

// loadConfig loads the config file. A missing file at the default location
// yields the built-in defaults; an explicitly named file must exist.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: picohost-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve          Start the gateway server")
		fmt.Println("  init           Write a default config file")
		fmt.Println("  health         Check gateway health")
		fmt.Println("  ask MESSAGE    Send a message to the agent and print the reply")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "ask":
		err = runAsk(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath, explicit := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.Addr())
	green.Print("    ▶ ")
	fmt.Printf("Agent:     ")
	cyan.Print(cfg.Agent.Provider)
	if cfg.Agent.Provider == "echo" {
		yellow.Print(" [dev]")
	}
	fmt.Println()
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	fmt.Println()

	logger.Info("starting picohost-gateway",
		"config", configPath,
		"http_addr", cfg.Server.Addr(),
		"provider", cfg.Agent.Provider,
		"request_timeout", cfg.Gateway.RequestTimeout,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runInit() error {
	configPath, _ := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(config.DefaultYAML), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println("\nTo start the server:")
	fmt.Println("  picohost-gateway serve")
	return nil
}

// clientBaseURL returns the URL the CLI uses to reach a local gateway.
func clientBaseURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + config.ServerConfig{Host: host, Port: cfg.Server.Port}.Addr()
}

func runHealth(ctx context.Context) error {
	configPath, explicit := getConfigPath()
	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, clientBaseURL(cfg)+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runAsk(ctx context.Context, args []string) error {
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return fmt.Errorf("usage: picohost-gateway ask MESSAGE")
	}

	configPath, explicit := getConfigPath()
	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return err
	}

	// Allow a little longer than the server so its 504 arrives first.
	ctx, cancel := context.WithTimeout(ctx, cfg.Gateway.RequestTimeout+10*time.Second)
	defer cancel()

	output, err := ask(ctx, http.DefaultClient, clientBaseURL(cfg), message)
	if err != nil {
		return err
	}
	fmt.Println(output)
	return nil
}

// ask posts message to the gateway at baseURL and returns the agent output.
func ask(ctx context.Context, client *http.Client, baseURL, message string) (string, error) {
	payload, err := json.Marshal(gateway.AgentRequest{Message: message})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/agent", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	var body gateway.AgentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if !body.OK {
		return "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, body.Error)
	}
	if body.Output == nil {
		return "", nil
	}
	return *body.Output, nil
}
