package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"smartbiz/audio"
	"smartbiz/intent"
	"smartbiz/log"
	"smartbiz/voice"
)

// lineSink prints screen events one per line for scripted tests.
type lineSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *lineSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format+"\n", args...)
}

func (s *lineSink) StateChanged(st voice.State) { s.printf("STATE %s", st) }
func (s *lineSink) Uploading(busy bool)         { s.printf("UPLOADING %t", busy) }
func (s *lineSink) Display(m voice.DisplayModel) {
	s.printf("DISPLAY %s", strings.ReplaceAll(m.Text(), "\n", " | "))
}

func describeResult(r intent.UploadResult) string {
	parts := []string{"kind=" + r.ErrorKind.String()}
	if r.Transcription != nil {
		parts = append(parts, strconv.Quote(*r.Transcription))
	}
	if d, ok := r.Decision.Get(); ok {
		parts = append(parts,
			"intent="+d.Intent,
			"item="+d.Item,
			"qty="+voice.FormatQuantity(d.Quantity),
			"unit="+d.Unit)
	}
	if r.Alert != "" {
		parts = append(parts, "alert="+strconv.Quote(r.Alert))
	}
	return strings.Join(parts, " ")
}

func newTestCmd(d *deps) *cobra.Command {
	var realtime bool
	cmd := &cobra.Command{
		Use:    "test <wav>",
		Short:  "Drive the voice screen from stdin using a WAV file as the microphone",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := d.requireConfig(); err != nil {
				return err
			}
			return runTestMode(cmd.Context(), d, args[0], realtime, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&realtime, "realtime", false, "deliver audio at its natural pace")
	return cmd
}

// runTestMode reads commands from in: PRESS, RELEASE, WAIT, UNMOUNT,
// MOUNT, SLEEP <ms> and QUIT. WAIT blocks until the last upload finished
// and prints its RESULT line.
func runTestMode(ctx context.Context, d *deps, wavPath string, realtime bool, in io.Reader, out io.Writer) error {
	if err := log.Init(); err != nil {
		fmt.Fprintf(out, "Warning: could not init logging: %v\n", err)
	}

	fake, err := audio.NewFakeContext(wavPath, realtime)
	if err != nil {
		return fmt.Errorf("loading WAV: %w", err)
	}
	dir, err := artifactDir()
	if err != nil {
		return err
	}
	up, err := newUploader(d.cfg)
	if err != nil {
		return err
	}
	sink := &lineSink{w: out}
	screen := voice.NewScreen(audio.NewMic(fake, nil, dir), up, d.cfg.Capture(), voice.WithSink(sink))

	log.SessionStart(up.Endpoint(), d.cfg.Format, "fake:"+wavPath)
	screen.Mount(ctx)
	defer screen.Unmount()

	var pending <-chan struct{}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "PRESS":
			if err := screen.Press(ctx); err != nil {
				sink.printf("ERROR press: %v", err)
			}
		case line == "RELEASE":
			done, err := screen.Release(ctx)
			if err != nil {
				sink.printf("ERROR release: %v", err)
				continue
			}
			pending = done
		case line == "WAIT":
			if pending == nil {
				continue
			}
			select {
			case <-pending:
			case <-ctx.Done():
				return ctx.Err()
			}
			pending = nil
			if r, ok := screen.Last(); ok {
				sink.printf("RESULT %s", describeResult(r))
			} else {
				sink.printf("RESULT discarded")
			}
		case line == "UNMOUNT":
			screen.Unmount()
		case line == "MOUNT":
			sink.printf("PERMISSION %s", screen.Mount(ctx))
		case strings.HasPrefix(line, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimPrefix(line, "SLEEP ")); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case line == "QUIT":
			return nil
		}
	}
	return scanner.Err()
}
