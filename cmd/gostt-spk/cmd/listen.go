package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-spk/internal/audio"
)

var (
	listenEnroll   string
	listenDuration time.Duration
	listenPartial  bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Transcribe the microphone and identify speakers",
	Long: `Streams the default microphone through the recognizer. Every finished
utterance is compared against the enrolled signatures. With --enroll, the
speaker of the final result is enrolled under the given label when listening
ends (Ctrl+C or --duration). Sending SIGUSR1 pauses or resumes capture.

Examples:
  gostt-spk listen
  gostt-spk listen --enroll alice --duration 10s
  kill -USR1 $(pgrep gostt-spk)   # pause or resume`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVarP(&listenEnroll, "enroll", "e", "", "enroll the speaker under this label when listening ends")
	listenCmd.Flags().DurationVarP(&listenDuration, "duration", "d", 0, "stop listening after this long (default: until Ctrl+C)")
	listenCmd.Flags().BoolVar(&listenPartial, "partial", false, "print partial transcripts")
}

func runListen(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if listenDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, listenDuration)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	printBanner(out, cfg)

	eng, err := openEngine(ctx, cfg, out, listenPartial)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("closing engine", "err", err)
		}
	}()

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels, slog.Default())
	if err != nil {
		return fmt.Errorf("%w\n\nEnsure microphone access is granted to this terminal.", err)
	}
	defer recorder.Close()

	if err := recorder.Start(); err != nil {
		return err
	}
	// Stopping the recorder ends the stream with io.EOF, which flushes the
	// final result.
	go func() {
		<-ctx.Done()
		recorder.Stop()
	}()

	pauseSig := make(chan os.Signal, 1)
	signal.Notify(pauseSig, syscall.SIGUSR1)
	defer signal.Stop(pauseSig)
	go watchPause(ctx, pauseSig, recorder, out)

	fmt.Fprintln(out, okStyle.Render("Listening... Ctrl+C to stop, SIGUSR1 to pause."))
	result, err := eng.session.Listen(context.WithoutCancel(ctx), recorder, listenEnroll)
	recorder.Stop()
	if err != nil {
		return err
	}

	if len(result.Identified) == 0 && len(result.Transcript) > 0 && eng.store != nil {
		fmt.Fprintln(out, warnStyle.Render("No enrolled speaker recognized."))
	}
	return nil
}

// pausable is the part of audio.Recorder that watchPause drives.
type pausable interface {
	SetPaused(paused bool)
	Paused() bool
	IsRecording() bool
}

// watchPause toggles pause on rec for every value received on sigs until ctx
// is done or sigs is closed. Signals arriving once capture has stopped are
// ignored.
func watchPause(ctx context.Context, sigs <-chan os.Signal, rec pausable, out io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sigs:
			if !ok {
				return
			}
			if !rec.IsRecording() {
				continue
			}
			paused := !rec.Paused()
			rec.SetPaused(paused)
			if paused {
				fmt.Fprintln(out, warnStyle.Render("Paused. SIGUSR1 to resume."))
			} else {
				fmt.Fprintln(out, okStyle.Render("Resumed."))
			}
		}
	}
}
