package cli

import (
	"encoding/json"
	"fmt"

	"artyats/internal/extract"

	"github.com/spf13/cobra"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Print the plain text the analysis would see for a document",
	Long: `Extract text from a PDF, DOCX or plain text file exactly as the analysis
commands do. Useful for checking what an ATS can read from a resume.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		logger := getLoggerFromContext(cmd.Context())

		res, err := extract.New(cfg.Extract, logger).ExtractFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if extractJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		return err
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print text with format, page and character counts as JSON")
}
