package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "docoutline",
	Short: "Reconstruct heading outlines from documents",
	Long: `docoutline turns the text lines of a PDF, scan or office document into a
nested outline: one title plus H1-H3 headings with 1-based page numbers.

Configuration comes from the environment (and a .env file if present).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("docoutline %s\n", version.String()))
}

// ocrRegister installs the OCR extractor; nil leaves images unsupported.
var ocrRegister func(languages []string)

// EnableOCR makes image files outlinable through fn, which is called with
// the configured Tesseract languages before the first document is read.
func EnableOCR(fn func(languages []string)) {
	ocrRegister = fn
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
