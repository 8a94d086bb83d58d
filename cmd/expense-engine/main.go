package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/pineapple-expense/expense-engine/internal/api"
	"github.com/pineapple-expense/expense-engine/internal/archive"
	"github.com/pineapple-expense/expense-engine/internal/auth"
	"github.com/pineapple-expense/expense-engine/internal/expense"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("expense-engine")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "expense-engine.db", "Database file path")
		imagePath   = fs.StringLong("images", "./receipts", "Receipt image directory path")
		backendURL  = fs.StringLong("backend-url", "", "Expense backend base URL")
		accessToken = fs.StringLong("token", "", "Backend access token (or set EXPENSE_ENGINE_TOKEN env var)")
		userName    = fs.StringLong("user-name", "", "Display name stamped onto submitted reports")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSE_ENGINE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *backendURL == "" {
		slog.Error("Backend URL is required. Set --backend-url flag or EXPENSE_ENGINE_BACKEND_URL environment variable")
		os.Exit(1)
	}

	token := *accessToken
	if token == "" {
		token = os.Getenv("EXPENSE_ENGINE_TOKEN")
	}
	credentials := auth.NewStaticCredentials(token)
	if credentials.Expired(time.Now()) {
		slog.Warn("Access token has expired; remote calls will be rejected until a fresh one is supplied")
	}

	name := *userName
	if name == "" {
		name = credentials.DisplayName()
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := expense.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize receipt image storage
	slog.Info("Initializing image store...")
	images, err := expense.NewLocalImageStore(*imagePath)
	if err != nil {
		slog.Error("Failed to initialize image store", "error", err)
		os.Exit(1)
	}

	// Initialize remote client and engine
	client := api.NewClient(*backendURL, credentials)
	engine, err := expense.NewEngine(db, images, client, name)
	if err != nil {
		slog.Error("Failed to initialize engine", "error", err)
		os.Exit(1)
	}

	archiveSvc := archive.NewService(client)

	// Initialize server
	basicAuth := expense.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := expense.NewServer(engine, archiveSvc, client, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "backend", *backendURL)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
