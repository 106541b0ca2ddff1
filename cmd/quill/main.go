package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/quill/internal/adapter"
	"github.com/mmcdole/quill/internal/adapter/blogapi"
	"github.com/mmcdole/quill/internal/app"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/tui"
	"github.com/mmcdole/quill/internal/tui/components"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                    \r"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: quill [flags] [command]

Commands:
  (none)    start the terminal UI
  login     log in from the command line
  logout    forget the saved session
  reset     change the server and remove saved sessions

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	var showVersion bool
	var openPath string
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&openPath, "open", "/posts", "route to open on start, e.g. /posts/12")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("quill %s\n", Version)
		return
	}

	if err := run(flag.Arg(0), openPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command, openPath string) error {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting quill", "version", Version, "command", command)

	switch command {
	case "reset":
		if err := adapter.ClearData(cfg); err != nil {
			return err
		}
		cfg.Server.URL = ""
		return runSetupFlow(cfg)
	case "", "login", "logout":
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}

	if !cfg.IsConfigured() {
		return runSetupFlow(cfg)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()

	switch command {
	case "login":
		return runLogin(a)
	case "logout":
		return runLogout(a)
	}

	model := tui.NewModel(a, openPath)
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	logger.Info("starting TUI", "server", cfg.Server.URL)

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// runSetupFlow asks for the server URL until one answers like a blog API
func runSetupFlow(cfg *adapter.Config) error {
	fmt.Println()
	fmt.Println("Welcome to Quill!")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	var serverURL string
	for {
		fmt.Print("Enter the blog API URL (e.g., http://localhost:8000/api): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			fmt.Println("URL cannot be empty. Please try again.")
			continue
		}

		fmt.Println()
		serverURL, err = probeWithSpinner(input)
		if err != nil {
			fmt.Printf("\n✗ %v\n", err)
			fmt.Println("Please check the URL and try again.")
			fmt.Println()
			continue
		}
		break
	}

	cfg.Server.URL = serverURL
	if err := adapter.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved!")
	fmt.Println()
	fmt.Println("Run quill again to start the application.")
	return nil
}

// probeWithSpinner checks the server with a visual spinner
func probeWithSpinner(serverURL string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	type result struct {
		url string
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		u, err := blogapi.Probe(ctx, serverURL)
		resultCh <- result{u, err}
	}()

	frames := components.SpinnerFrames
	frame := 0
	fmt.Printf("\r%s Contacting server...", frames[frame])

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-resultCh:
			fmt.Print(clearSpinnerLine)
			if res.err != nil {
				return "", res.err
			}
			fmt.Printf("✓ Found blog API at %s\n", res.url)
			return res.url, nil

		case <-ticker.C:
			frame++
			fmt.Printf("\r%s Contacting server...", frames[frame%len(frames)])

		case <-ctx.Done():
			fmt.Print(clearSpinnerLine)
			return "", fmt.Errorf("server did not answer in time")
		}
	}
}

// runLogin reads credentials from the terminal and stores the session
func runLogin(a *app.App) error {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	username = strings.TrimSpace(username)

	fmt.Print("Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password := string(raw)

	if err := domain.ValidateLogin(username, password); err != nil {
		return err
	}

	timeout := a.Config.Server.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	snap, err := a.Session.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("%s", domain.UserMessage(err, "Login failed. Invalid credentials."))
	}

	name := username
	if snap.User != nil {
		name = snap.User.DisplayName()
	}
	fmt.Printf("✓ Logged in as %s\n", name)
	return nil
}

func runLogout(a *app.App) error {
	if err := a.Session.Logout(); err != nil {
		return fmt.Errorf("failed to clear saved session: %w", err)
	}
	fmt.Println("✓ Logged out")
	return nil
}
