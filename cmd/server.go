package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomefetch/tomefetch/internal/core"
	"github.com/tomefetch/tomefetch/internal/engine/events"
)

const exitPollInterval = 2 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the tomefetch background server",
	Long:  `Start, stop, or check the status of the headless tomefetch server.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start [url]...",
	Short: "Start the tomefetch server in headless mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		portFlag, _ := cmd.Flags().GetInt("port")
		batchFile, _ := cmd.Flags().GetString("batch")
		outputDir, _ := cmd.Flags().GetString("output")
		exitWhenDone, _ := cmd.Flags().GetBool("exit-when-done")

		urls, err := collectURLs(args, batchFile)
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		lock, err := acquireInstanceLock()
		if err != nil {
			if errors.Is(err, errAlreadyRunning) {
				return errors.New("tomefetch server is already running")
			}
			return err
		}
		defer releaseInstanceLock(lock)
		a.recoverInterrupted()

		writeIntFile(pidFilePath(), os.Getpid())
		defer removeRuntimeFile(pidFilePath())

		service := a.newLocalService(a.runtime(), outputDir)
		api, err := startAPIServer(service, portFlag)
		if err != nil {
			_ = service.Shutdown()
			return err
		}
		defer api.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		stream, unsubscribe, err := service.StreamEvents(ctx)
		if err != nil {
			_ = service.Shutdown()
			return err
		}
		defer unsubscribe()
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			printEvents(out, stream)
		}()

		fmt.Fprintf(out, "tomefetch %s running in server mode.\n", Version)
		fmt.Fprintf(out, "HTTP server listening on port %d\n", api.Port)
		fmt.Fprintln(out, "Press Ctrl+C to exit.")

		for _, u := range urls {
			if _, err := service.Add(u, outputDir, "", nil); err != nil {
				fmt.Fprintf(os.Stderr, "Error adding %s: %v\n", u, err)
			}
		}

		if exitWhenDone {
			waitUntilIdle(ctx, service)
		} else {
			<-ctx.Done()
		}

		fmt.Fprintln(out, "Shutting down...")
		err = service.Shutdown()
		<-printed
		return err
	},
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running tomefetch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid := readIntFile(pidFilePath())
		if pid == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No running tomefetch server found (PID file missing).")
			return nil
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("error finding process: %w", err)
		}
		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("error stopping server: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Sent stop signal to process %d\n", pid)
		return nil
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the tomefetch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		pid := readIntFile(pidFilePath())
		if pid == 0 {
			fmt.Fprintln(out, "tomefetch server is NOT running.")
			return nil
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			fmt.Fprintf(out, "tomefetch server is NOT running (process %d not found).\n", pid)
			return nil
		}
		// Signal 0 only checks that the process exists.
		if err := process.Signal(syscall.Signal(0)); err != nil {
			fmt.Fprintf(out, "tomefetch server is NOT running (process %d dead).\n", pid)
			removeRuntimeFile(pidFilePath())
			return nil
		}

		port := readActivePort()
		health := "unreachable"
		if port > 0 && checkHealth(port) {
			health = "healthy"
		}
		fmt.Fprintf(out, "tomefetch server is running (PID: %d, Port: %d, API: %s).\n", pid, port, health)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	serverCmd.AddCommand(serverStatusCmd)

	serverStartCmd.Flags().StringP("batch", "b", "", "File containing URLs to download")
	serverStartCmd.Flags().IntP("port", "p", 0, "Port to listen on")
	serverStartCmd.Flags().StringP("output", "o", "", "Default output directory")
	serverStartCmd.Flags().Bool("exit-when-done", false, "Exit when all downloads complete")
}

// printEvents writes one line per lifecycle event until stream closes.
func printEvents(w io.Writer, stream <-chan any) {
	for msg := range stream {
		if line := events.Describe(msg); line != "" {
			fmt.Fprintln(w, line)
		}
	}
}

// waitUntilIdle returns once ctx is done or the service has had nothing
// queued, running or paused for a full poll interval.
func waitUntilIdle(ctx context.Context, service *core.LocalDownloadService) {
	ticker := time.NewTicker(exitPollInterval)
	defer ticker.Stop()
	idleTicks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if service.ActiveCount() > 0 {
				idleTicks = 0
				continue
			}
			idleTicks++
			if idleTicks >= 2 {
				fmt.Println("All downloads finished. Exiting...")
				return
			}
		}
	}
}

func checkHealth(port int) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}
