package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cvparse/internal/version"
	"github.com/jmylchreest/cvparse/pkg/cv"
	"github.com/jmylchreest/cvparse/pkg/llm"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the CV extraction schema",
	Long: `Print the schema sent to the LLM. By default this is the JSON Schema; use
--strict for the variant used with OpenAI structured outputs and --prompt for
the plain-text description embedded in the prompt.`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List LLM providers and whether credentials were found",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

func init() {
	rootCmd.AddCommand(schemaCmd, versionCmd, providersCmd)

	schemaCmd.Flags().Bool("strict", false, "print the strict JSON Schema")
	schemaCmd.Flags().Bool("prompt", false, "print the prompt description")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	s := cv.Schema()
	if prompt, _ := cmd.Flags().GetBool("prompt"); prompt {
		_, err := fmt.Fprint(cmd.OutOrStdout(), s.ToPromptDescription())
		return err
	}

	strict, _ := cmd.Flags().GetBool("strict")
	var (
		js  map[string]any
		err error
	)
	if strict {
		js, err = s.ToStrictJSONSchema()
	} else {
		js, err = s.ToJSONSchema()
	}
	if err != nil {
		return err
	}
	return writeOut(cmd, js)
}

type providerInfo struct {
	Name         string `json:"name"`
	DefaultModel string `json:"default_model"`
	Credentials  bool   `json:"credentials"`
	Detected     bool   `json:"detected"`
}

func runProviders(cmd *cobra.Command, _ []string) error {
	detected := llm.DetectProvider()
	var out []providerInfo
	for _, name := range llm.AvailableProviders() {
		out = append(out, providerInfo{
			Name:         name,
			DefaultModel: llm.GetDefaultModel(name),
			Credentials:  llm.HasCredentials(name),
			Detected:     name == detected,
		})
	}
	return writeOut(cmd, out)
}
