package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomefetch/tomefetch/internal/core"
	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/utils"
)

// remoteService connects to the running server named by --host, the
// environment or the local port file.
func remoteService() (*core.RemoteDownloadService, error) {
	baseURL, token, err := resolveAPIConnection()
	if err != nil {
		return nil, err
	}
	return core.NewRemoteDownloadService(baseURL, token), nil
}

var addCmd = &cobra.Command{
	Use:   "add <url>...",
	Short: "Queue downloads on the running tomefetch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir, _ := cmd.Flags().GetString("output")
		filename, _ := cmd.Flags().GetString("filename")
		batchFile, _ := cmd.Flags().GetString("batch")
		rawHeaders, _ := cmd.Flags().GetStringArray("header")

		urls, err := collectURLs(args, batchFile)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return fmt.Errorf("no URLs given")
		}
		if filename != "" && len(urls) > 1 {
			return fmt.Errorf("--filename can only be used with a single URL")
		}
		headers, err := parseHeaders(rawHeaders)
		if err != nil {
			return err
		}

		service, err := remoteService()
		if err != nil {
			return err
		}

		failed := 0
		for _, u := range urls {
			id, err := service.Add(u, outputDir, filename, headers)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "Error adding %s: %v\n", u, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s [%s]\n", u, shortID(id))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d downloads could not be queued", failed, len(urls))
		}
		return nil
	},
}

// controlCommand builds pause, resume and cancel, which differ only in the
// service call.
func controlCommand(use, short, verb string, call func(core.DownloadService, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := remoteService()
			if err != nil {
				return err
			}
			id, err := resolveDownloadID(service, args[0])
			if err != nil {
				return err
			}
			if err := call(service, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, shortID(id))
			return nil
		},
	}
}

var pauseCmd = controlCommand("pause", "Pause a running download", "Paused",
	func(s core.DownloadService, id string) error { return s.Pause(id) })

var resumeCmd = controlCommand("resume", "Resume a paused download", "Resumed",
	func(s core.DownloadService, id string) error { return s.Resume(id) })

var cancelCmd = controlCommand("cancel", "Cancel a download, or remove a finished one from history", "Cancelled",
	func(s core.DownloadService, id string) error { return s.Delete(id) })

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List downloads on the running tomefetch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		service, err := remoteService()
		if err != nil {
			return err
		}
		statuses, err := service.List()
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), statuses)
		}
		printStatusTable(cmd.OutOrStdout(), statuses)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished downloads recorded by the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		service, err := remoteService()
		if err != nil {
			return err
		}
		entries, err := service.History()
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		printHistoryTable(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("output", "o", "", "Output directory on the server")
	addCmd.Flags().StringP("filename", "f", "", "Output file name (single URL only)")
	addCmd.Flags().StringP("batch", "b", "", "File containing URLs to download (one per line)")
	addCmd.Flags().StringArrayP("header", "H", nil, "Extra request header as 'Key: Value' (repeatable)")
	lsCmd.Flags().Bool("json", false, "Print JSON")
	historyCmd.Flags().Bool("json", false, "Print JSON")

	rootCmd.AddCommand(addCmd, pauseCmd, resumeCmd, cancelCmd, lsCmd, historyCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatusTable(w io.Writer, statuses []types.DownloadStatus) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, "No downloads.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tSTATUS\tPROGRESS\tSPEED")
	for _, s := range statuses {
		progress := utils.ConvertBytesToHumanReadable(s.Downloaded)
		if !s.Indeterminate && s.TotalSize > 0 {
			progress = fmt.Sprintf("%.1f%% of %s", s.Progress, utils.ConvertBytesToHumanReadable(s.TotalSize))
		}
		speed := "-"
		if s.Status == types.StatusRunning.String() {
			speed = utils.ConvertBytesToHumanReadable(int64(s.Speed)) + "/s"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", shortID(s.ID), orDash(s.Filename), s.Status, progress, speed)
	}
	_ = tw.Flush()
}

func printHistoryTable(w io.Writer, entries []types.DownloadEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tSTATUS\tSIZE\tFINISHED")
	for _, e := range entries {
		finished := "-"
		if e.CompletedAt > 0 {
			finished = time.Unix(e.CompletedAt, 0).Format(time.DateTime)
		}
		size := utils.ConvertBytesToHumanReadable(e.Downloaded)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", shortID(e.ID), orDash(e.Filename), e.Status, size, finished)
	}
	_ = tw.Flush()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
