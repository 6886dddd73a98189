package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-spk/internal/embedding"
	"github.com/chaz8081/gostt-spk/internal/signature"
)

var signaturesCmd = &cobra.Command{
	Use:     "signatures",
	Aliases: []string{"sig"},
	Short:   "Manage enrolled speaker signatures",
	Long: `Lists, compares and enrolls speaker signatures without running the
recognizer. VECTOR_FILE is a signature file (first line "[v1, v2, ...]") or a
saved recognizer result with an "spk" field.

Examples:
  gostt-spk signatures list
  gostt-spk signatures identify result.json
  gostt-spk signatures enroll alice alice.txt
  gostt-spk signatures compare alice.txt bob.txt`,
}

var signaturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled speakers",
	Args:  cobra.NoArgs,
	RunE:  runSignaturesList,
}

var signaturesIdentifyCmd = &cobra.Command{
	Use:   "identify VECTOR_FILE",
	Short: "Report enrolled speakers matching an embedding",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignaturesIdentify,
}

var signaturesEnrollCmd = &cobra.Command{
	Use:   "enroll LABEL VECTOR_FILE",
	Short: "Enroll an embedding unless it matches an enrolled speaker",
	Args:  cobra.ExactArgs(2),
	RunE:  runSignaturesEnroll,
}

var signaturesCompareCmd = &cobra.Command{
	Use:   "compare A B",
	Short: "Print the cosine similarity of two embeddings",
	Args:  cobra.ExactArgs(2),
	RunE:  runSignaturesCompare,
}

func init() {
	rootCmd.AddCommand(signaturesCmd)
	signaturesCmd.AddCommand(signaturesListCmd, signaturesIdentifyCmd, signaturesEnrollCmd, signaturesCompareCmd)
}

// withMatcher opens the configured store for the duration of fn.
func withMatcher(fn func(*signature.Matcher) error) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("closing signature store", "err", err)
		}
	}()
	return fn(newMatcher(store, cfg))
}

func runSignaturesList(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	return withMatcher(func(m *signature.Matcher) error {
		sigs, loadErrs, err := m.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(sigs) == 0 && len(loadErrs) == 0 {
			fmt.Fprintln(out, "No registered speakers.")
			return nil
		}

		rows := make([][]string, 0, len(sigs))
		for _, s := range sigs {
			rows = append(rows, []string{s.Label, strconv.Itoa(len(s.Vector))})
		}
		printTable(out, []string{"LABEL", "DIM"}, rows)
		for _, e := range loadErrs {
			fmt.Fprintln(out, errorStyle.Render("error: "+e.Error()))
		}
		return nil
	})
}

func runSignaturesIdentify(cmd *cobra.Command, args []string) error {
	vec, err := readVector(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	return withMatcher(func(m *signature.Matcher) error {
		id, err := m.Identify(cmd.Context(), vec)
		if err != nil {
			return err
		}
		for _, e := range id.Errors {
			fmt.Fprintln(out, errorStyle.Render("error: "+e.Error()))
		}
		switch {
		case id.Empty:
			fmt.Fprintln(out, "No registered speakers.")
		case len(id.Matches) == 0:
			fmt.Fprintln(out, warnStyle.Render("Unknown speaker."))
		default:
			rows := make([][]string, 0, len(id.Matches))
			for _, match := range id.Matches {
				rows = append(rows, []string{match.Label, fmt.Sprintf("%.4f", match.Similarity)})
			}
			printTable(out, []string{"SPEAKER", "SIMILARITY"}, rows)
		}
		return nil
	})
}

func runSignaturesEnroll(cmd *cobra.Command, args []string) error {
	label := args[0]
	vec, err := readVector(args[1])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	return withMatcher(func(m *signature.Matcher) error {
		d, err := m.Check(cmd.Context(), vec, label)
		for _, e := range d.Errors {
			fmt.Fprintln(out, errorStyle.Render("error: "+e.Error()))
		}
		if err != nil {
			return err
		}
		if d.Matched {
			fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("Speaker already enrolled as %s (similarity=%.4f)", d.Best.Label, d.Best.Similarity)))
			return nil
		}
		fmt.Fprintln(out, okStyle.Render("Enrolled new speaker "+d.Enrolled))
		return nil
	})
}

func runSignaturesCompare(cmd *cobra.Command, args []string) error {
	a, err := readVector(args[0])
	if err != nil {
		return err
	}
	b, err := readVector(args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sim := embedding.CosineSimilarity(a, b)
	if sim == -1 && len(a) != len(b) {
		fmt.Fprintf(out, "Dimension mismatch (%d vs %d)\n", len(a), len(b))
		return nil
	}
	verdict := warnStyle.Render("different speakers")
	if sim > cfg.Signatures.Threshold {
		verdict = okStyle.Render("same speaker")
	}
	fmt.Fprintf(out, "similarity=%.4f threshold=%.2f %s\n", sim, cfg.Signatures.Threshold, verdict)
	return nil
}
