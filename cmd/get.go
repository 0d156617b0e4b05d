package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/tomefetch/tomefetch/internal/engine/events"
	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/utils"
)

var errDownloadCancelled = errors.New("download cancelled")

var getCmd = &cobra.Command{
	Use:   "get [url]",
	Short: "Download a single file in the foreground",
	Long:  `get downloads one URL in this process, printing progress until it finishes. Ctrl+C cancels and keeps the partial file.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir, _ := cmd.Flags().GetString("output")
		filename, _ := cmd.Flags().GetString("filename")
		chunkSize, _ := cmd.Flags().GetInt("chunk-size")
		fromClipboard, _ := cmd.Flags().GetBool("clipboard")
		rawHeaders, _ := cmd.Flags().GetStringArray("header")

		url, err := getURLArg(args, fromClipboard)
		if err != nil {
			return err
		}
		headers, err := parseHeaders(rawHeaders)
		if err != nil {
			return err
		}
		if strings.ContainsAny(filename, `/\`) {
			return fmt.Errorf("invalid filename %q", filename)
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		runtime := *a.runtime()
		runtime.MaxConcurrentDownloads = 1
		if chunkSize > 0 {
			if chunkSize > types.MaxChunkSize {
				return fmt.Errorf("chunk size %d exceeds the maximum of %d", chunkSize, types.MaxChunkSize)
			}
			runtime.ChunkSize = chunkSize
		}

		service := a.newLocalService(&runtime, outputDir)
		defer func() { _ = service.Shutdown() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Subscribe first so no event of this download is missed.
		stream, unsubscribe, err := service.StreamEvents(context.Background())
		if err != nil {
			return err
		}
		defer unsubscribe()

		id, err := service.Add(url, outputDir, filename, headers)
		if err != nil {
			return err
		}
		utils.Debug("get: queued %s as %s", url, id)

		finished := make(chan struct{})
		go func() {
			select {
			case <-finished:
			case <-ctx.Done():
				select {
				case <-finished:
				default:
					_ = service.Delete(id)
				}
			}
		}()

		err = followDownload(cmd.OutOrStdout(), id, stream)
		close(finished)
		return err
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("output", "o", "", "Output directory")
	getCmd.Flags().StringP("filename", "f", "", "Output file name (default: derived from the response)")
	getCmd.Flags().Int("chunk-size", 0, "Read size in bytes (default from settings)")
	getCmd.Flags().Bool("clipboard", false, "Take the URL from the clipboard")
	getCmd.Flags().StringArrayP("header", "H", nil, "Extra request header as 'Key: Value' (repeatable)")
}

func getURLArg(args []string, fromClipboard bool) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if !fromClipboard {
		return "", errors.New("a URL is required (or pass --clipboard)")
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("clipboard is empty")
	}
	return text, nil
}

// followDownload prints progress for id until it reaches a terminal event.
func followDownload(w io.Writer, id string, stream <-chan any) error {
	progressShown := false
	endLine := func() {
		if progressShown {
			fmt.Fprintln(w)
			progressShown = false
		}
	}

	for msg := range stream {
		if events.DownloadID(msg) != id {
			continue
		}
		if p, ok := msg.(events.ProgressMsg); ok {
			fmt.Fprintf(w, "\r%s", formatProgress(p))
			progressShown = true
			continue
		}

		endLine()
		if line := events.Describe(msg); line != "" {
			fmt.Fprintln(w, line)
		}

		switch m := msg.(type) {
		case events.DownloadCompleteMsg:
			return nil
		case events.DownloadErrorMsg:
			return m.Err
		case events.DownloadCancelledMsg, events.DownloadRemovedMsg:
			return errDownloadCancelled
		}
	}
	endLine()
	return errors.New("event stream closed before the download finished")
}

func formatProgress(p events.ProgressMsg) string {
	speed := utils.ConvertBytesToHumanReadable(int64(p.Speed)) + "/s"
	if p.Indeterminate {
		return fmt.Sprintf("%s downloaded  %s  %s    ",
			utils.ConvertBytesToHumanReadable(p.Downloaded), speed, utils.FormatDuration(p.Elapsed))
	}
	return fmt.Sprintf("%5.1f%%  %s / %s  %s  %s    ",
		p.Percent,
		utils.ConvertBytesToHumanReadable(p.Downloaded),
		utils.ConvertBytesToHumanReadable(p.Total),
		speed, utils.FormatDuration(p.Elapsed))
}
