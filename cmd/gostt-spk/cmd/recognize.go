package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-spk/internal/recognize"
)

var (
	recognizeLabel  string
	recognizeExpect string
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize FILE...",
	Short: "Transcribe WAV files and enroll their speakers",
	Long: `Transcribes each WAV file and compares its speaker embedding with the
enrolled signatures. A speaker that matches none of them is enrolled under
the file name without extension, or under --label.

Examples:
  gostt-spk recognize alice.wav bob.wav
  gostt-spk recognize take3.wav --label carol
  gostt-spk recognize hello.wav --expect "hello world"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
	recognizeCmd.Flags().StringVarP(&recognizeLabel, "label", "l", "", "enroll under this label (single file only)")
	recognizeCmd.Flags().StringVar(&recognizeExpect, "expect", "", "score the transcript against this reference text (single file only)")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	if (recognizeLabel != "" || recognizeExpect != "") && len(args) > 1 {
		return errors.New("--label and --expect can only be used with a single file")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	printBanner(out, cfg)

	eng, err := openEngine(ctx, cfg, out, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Error("closing engine", "err", err)
		}
	}()

	var failed int
	for _, path := range args {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintln(out, titleStyle.Render(path))
		result, err := eng.session.RecognizeFile(ctx, path, recognizeLabel)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("error: "+err.Error()))
			failed++
			continue
		}
		if recognizeExpect != "" {
			er := recognize.WordErrorRate(recognizeExpect, result.Text())
			fmt.Fprintf(out, "WER %.1f%% (%d substitutions, %d insertions, %d deletions over %d words)\n",
				er.WER*100, er.Substitutions, er.Insertions, er.Deletions, er.RefWords)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
