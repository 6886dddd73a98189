package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-spk/internal/models"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List, download and install Vosk models",
	Long: `Shows the known Vosk models and whether they are installed.

Examples:
  gostt-spk models                         # list known models
  gostt-spk models download small-en-us
  gostt-spk models install ./vosk-model-en-us-0.22.zip`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download NAME",
	Short: "Download and unpack a known model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsDownload,
}

var modelsInstallCmd = &cobra.Command{
	Use:   "install SRC",
	Short: "Install a local model directory or zip archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsInstall,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsDownloadCmd, modelsInstallCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Models directory: %s\n\n", cfg.Models.Dir)

	var rows [][]string
	for _, m := range models.Known() {
		status := warnStyle.Render("missing")
		if info, err := os.Stat(filepath.Join(cfg.Models.Dir, m.Dir)); err == nil && info.IsDir() {
			status = okStyle.Render("installed")
		}
		rows = append(rows, []string{m.Name, m.Dir, status, m.Description})
	}
	printTable(out, []string{"NAME", "DIRECTORY", "STATUS", "DESCRIPTION"}, rows)
	return nil
}

func runModelsDownload(cmd *cobra.Command, args []string) error {
	dir, err := models.Download(cmd.Context(), args[0], cfg.Models.Dir, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Installed "+dir))
	return nil
}

func runModelsInstall(cmd *cobra.Command, args []string) error {
	dir, err := models.Install(args[0], cfg.Models.Dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Installed "+dir))
	return nil
}
