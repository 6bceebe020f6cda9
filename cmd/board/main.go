package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/collabboard/coordinator/pkg/client"
	"github.com/collabboard/coordinator/pkg/coordinator"
	"github.com/collabboard/coordinator/pkg/events"
	"github.com/collabboard/coordinator/pkg/log"
	"github.com/collabboard/coordinator/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "Board - a real-time collaborative Kanban coordinator",
	Long: `Board serves a single shared Kanban board to any number of
live websocket clients, broadcasting every create/update/move/delete
as it happens and resolving simultaneous card moves deterministically.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"board version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", envOr("BOARD_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", envOrBool("BOARD_LOG_JSON", false), "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(tasksCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the board: websocket event channel plus read-only HTTP fallback",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen-addr")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		cacheAddr, _ := cmd.Flags().GetString("cache-addr")
		cacheToken, _ := cmd.Flags().GetString("cache-token")
		corsOrigin, _ := cmd.Flags().GetString("cors-origin")

		c, err := coordinator.New(coordinator.Config{
			ListenAddr: listenAddr,
			DataDir:    dataDir,
			CacheAddr:  cacheAddr,
			CacheToken: cacheToken,
			CORSOrigin: corsOrigin,
			Version:    Version,
		})
		if err != nil {
			return fmt.Errorf("build coordinator: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errCh := c.Start(ctx)
		fmt.Printf("Board listening on %s\n", listenAddr)
		fmt.Println("Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), coordinator.DrainTimeout+5*time.Second)
		defer shutdownCancel()
		if err := c.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}

		fmt.Println("Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen-addr", envOr("BOARD_LISTEN_ADDR", ":8080"), "Address to serve websocket and HTTP traffic on")
	serveCmd.Flags().String("data-dir", envOr("BOARD_DATA_DIR", "./board-data"), "Directory for durable board storage")
	serveCmd.Flags().String("cache-addr", envOr("BOARD_CACHE_ADDR", ""), "Redis address for the authoritative cache (empty uses the in-process cache)")
	serveCmd.Flags().String("cache-token", envOr("BOARD_CACHE_TOKEN", ""), "Redis auth token")
	serveCmd.Flags().String("cors-origin", envOr("BOARD_CORS_ORIGIN", ""), "Allowed websocket/CORS origin (empty allows any)")
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks currently on the board via the read-only HTTP fallback",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		resp, err := http.Get(addr + "/tasks")
		if err != nil {
			return fmt.Errorf("GET /tasks: %w", err)
		}
		defer resp.Body.Close()

		var tasks []*types.Task
		if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}

		for _, t := range tasks {
			fmt.Printf("%-36s %-12s v%-4d %s\n", t.ID, t.ColumnID, t.Version, t.Title)
		}
		return nil
	},
}

func init() {
	tasksCmd.Flags().String("addr", envOr("BOARD_LISTEN_ADDR", "http://localhost:8080"), "Board HTTP address")
}

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Connect to a running board and replay a queued-operations JSON file",
	Long: `Replay reads a JSON array of queued operations (the same shape a
browser client buffers while offline) from file and sends it to the
board as a single REPLAY_OPS event, then prints whatever the board
broadcasts in response for a few seconds.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		displayName, _ := cmd.Flags().GetString("display-name")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read ops file: %w", err)
		}
		var ops []types.QueuedOp
		if err := json.Unmarshal(data, &ops); err != nil {
			return fmt.Errorf("parse ops file: %w", err)
		}

		c, err := client.New(addr, displayName)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := client.WaitFor(ctx, c, events.BoardSnapshot); err != nil {
			return fmt.Errorf("wait for snapshot: %w", err)
		}

		if err := c.Replay(ops); err != nil {
			return fmt.Errorf("send replay: %w", err)
		}

		deadline := time.After(3 * time.Second)
		for {
			select {
			case env, ok := <-c.Events():
				if !ok {
					return c.Err()
				}
				fmt.Printf("%s\n", env.Type)
			case <-deadline:
				return nil
			}
		}
	},
}

func init() {
	replayCmd.Flags().String("addr", envOr("BOARD_LISTEN_ADDR", "ws://localhost:8080"), "Board websocket address")
	replayCmd.Flags().String("display-name", "", "Display name to reconnect as")
}
