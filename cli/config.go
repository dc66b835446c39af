package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ladzaretti/vaultagent/clierror"
	"github.com/ladzaretti/vaultagent/config"
	"github.com/ladzaretti/vaultagent/genericclioptions"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// ConfigOptions holds the loaded, env-overridden configuration shared by
// every command.
type ConfigOptions struct {
	*genericclioptions.StdioOptions

	configPath string
	config     *config.Config
}

var _ genericclioptions.CmdOptions = &ConfigOptions{}

// NewConfigOptions initializes ConfigOptions with default values.
func NewConfigOptions() *ConfigOptions {
	return &ConfigOptions{config: &config.Config{}}
}

func (o *ConfigOptions) Complete() error {
	c, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	o.config = c

	return nil
}

func (*ConfigOptions) Validate() error { return nil }

func (*ConfigOptions) Run(context.Context, ...string) error { return nil }

// NewCmdConfig creates the cobra config command tree.
func NewCmdConfig(stdio *genericclioptions.StdioOptions) *cobra.Command {
	o := NewConfigOptions()
	o.StdioOptions = stdio

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Resolve and inspect the active configuration",
		Long: `Resolve and display the active configuration.

If --file is not provided, the default config path (~/.vaultagent.toml) is used.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))

			if len(o.config.Path()) == 0 {
				o.Infof("no config file found; using default values.\n")
				return
			}

			c := struct {
				Path   string `json:"path"`
				Parsed any    `json:"parsed_config"` //nolint:tagliatelle
			}{
				Path:   o.config.Path(),
				Parsed: o.config,
			}

			o.Printf("%s", stringifyPretty(c))
		},
	}

	cmd.PersistentFlags().StringVarP(&o.configPath, "file", "f", "",
		"path to the configuration file (default: ~/.vaultagent.toml)")

	cmd.AddCommand(newGenerateConfigCmd(stdio))

	return cmd
}

// stringifyPretty returns the pretty-printed JSON representation of v.
func stringifyPretty(v any) string {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)

	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("stringify error: %v", err)
	}

	return buf.String()
}

type generateConfigOptions struct {
	*genericclioptions.StdioOptions
}

var _ genericclioptions.CmdOptions = &generateConfigOptions{}

func (*generateConfigOptions) Complete() error { return nil }

func (*generateConfigOptions) Validate() error { return nil }

func (o *generateConfigOptions) Run(context.Context, ...string) error {
	var c config.Config

	out, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	o.Printf("%s", string(out))

	return nil
}

// newGenerateConfigCmd creates the 'generate' subcommand for printing a
// default config.
func newGenerateConfigCmd(stdio *genericclioptions.StdioOptions) *cobra.Command {
	o := &generateConfigOptions{StdioOptions: stdio}

	return &cobra.Command{
		Use:   "generate",
		Short: "Print a default config file",
		Long:  `Outputs the default configuration in TOML format to stdout.`,
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}
}
