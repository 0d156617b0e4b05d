package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomefetch/tomefetch/internal/engine/events"
)

func feed(msgs ...any) <-chan any {
	ch := make(chan any, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return ch
}

func TestFollowDownload_Complete(t *testing.T) {
	var out bytes.Buffer
	err := followDownload(&out, "id-1", feed(
		events.DownloadStartedMsg{DownloadID: "id-1", Filename: "tome.pdf", DestPath: "/tmp/tome.pdf", Total: 100},
		events.ProgressMsg{DownloadID: "other", Downloaded: 1},
		events.ProgressMsg{DownloadID: "id-1", Downloaded: 50, Total: 100, Percent: 50},
		events.DownloadCompleteMsg{DownloadID: "id-1", Filename: "tome.pdf", Elapsed: time.Second},
	))
	if err != nil {
		t.Fatalf("followDownload: %v", err)
	}

	text := out.String()
	for _, want := range []string{"Started: tome.pdf", "50.0%", "Completed: tome.pdf"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "other") {
		t.Errorf("events of other downloads leaked into the output:\n%s", text)
	}
}

func TestFollowDownload_Failures(t *testing.T) {
	boom := errors.New("connection reset")

	err := followDownload(&bytes.Buffer{}, "id", feed(events.DownloadErrorMsg{DownloadID: "id", Err: boom}))
	if !errors.Is(err, boom) {
		t.Errorf("error event: got %v, want %v", err, boom)
	}

	err = followDownload(&bytes.Buffer{}, "id", feed(events.DownloadCancelledMsg{DownloadID: "id"}))
	if !errors.Is(err, errDownloadCancelled) {
		t.Errorf("cancelled event: got %v", err)
	}

	err = followDownload(&bytes.Buffer{}, "id", feed(events.DownloadRemovedMsg{DownloadID: "id"}))
	if !errors.Is(err, errDownloadCancelled) {
		t.Errorf("removed event: got %v", err)
	}

	if err := followDownload(&bytes.Buffer{}, "id", feed()); err == nil {
		t.Error("closed stream should be an error")
	}
}

func TestFormatProgress(t *testing.T) {
	determinate := formatProgress(events.ProgressMsg{Downloaded: 512, Total: 1024, Percent: 50, Speed: 2048})
	if !strings.Contains(determinate, "50.0%") {
		t.Errorf("determinate progress = %q", determinate)
	}
	indeterminate := formatProgress(events.ProgressMsg{Downloaded: 512, Indeterminate: true})
	if strings.Contains(indeterminate, "%") {
		t.Errorf("indeterminate progress should not show a percentage: %q", indeterminate)
	}
}

func TestGetURLArg(t *testing.T) {
	if url, err := getURLArg([]string{"http://example.com/a"}, true); err != nil || url != "http://example.com/a" {
		t.Errorf("getURLArg with arg = %q, %v", url, err)
	}
	if _, err := getURLArg(nil, false); err == nil {
		t.Error("expected an error without URL or --clipboard")
	}
}
