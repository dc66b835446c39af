package cli

import (
	"context"
	"fmt"

	"github.com/ladzaretti/vaultagent/clierror"
	"github.com/ladzaretti/vaultagent/genericclioptions"
	"github.com/ladzaretti/vaultagent/randstring"

	"github.com/spf13/cobra"
)

// defaultPasswordPolicy is applied when the user supplies no flags: no
// character class requirements and no minimum length.
var defaultPasswordPolicy = randstring.PasswordPolicy{
	MinUppercase: 2,
	MinLowercase: 2,
	MinDigits:    2,
	MinSymbols:   2,
	MinLength:    16,
}

type GenerateOptions struct {
	*genericclioptions.StdioOptions

	policy randstring.PasswordPolicy
}

var _ genericclioptions.CmdOptions = &GenerateOptions{}

// NewGenerateOptions initializes the options struct.
func NewGenerateOptions(stdio *genericclioptions.StdioOptions) *GenerateOptions {
	return &GenerateOptions{
		StdioOptions: stdio,
	}
}

func (*GenerateOptions) Complete() error {
	return nil
}

func (*GenerateOptions) Validate() error {
	return nil
}

func (o *GenerateOptions) Run(context.Context, ...string) error {
	policy := o.policy

	zero := randstring.PasswordPolicy{}
	if policy == zero {
		policy = defaultPasswordPolicy
	}

	s, err := randstring.NewWithPolicy(policy)
	if err != nil {
		return err
	}

	o.Infof("%s", s)

	return nil
}

// NewCmdGenerate creates the Generate cobra command.
func NewCmdGenerate(stdio *genericclioptions.StdioOptions) *cobra.Command {
	o := NewGenerateOptions(stdio)

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen", "rand"},
		Short:   "Generate a random password",
		Long: fmt.Sprintf(`Generate a random password based on the provided character requirements and minimum length.

If no flags are provided, the default policy is:
  - At least %d uppercase letters
  - At least %d lowercase letters
  - At least %d digits
  - At least %d symbols
  - Minimum total length: %d

Generated passwords never exceed %d characters.
`,
			defaultPasswordPolicy.MinUppercase,
			defaultPasswordPolicy.MinLowercase,
			defaultPasswordPolicy.MinDigits,
			defaultPasswordPolicy.MinSymbols,
			defaultPasswordPolicy.MinLength,
			randstring.MaxLength,
		),
		Run: func(cmd *cobra.Command, _ []string) {
			clierror.Check(genericclioptions.ExecuteCommand(cmd.Context(), o))
		},
	}

	cmd.Flags().IntVarP(&o.policy.MinUppercase, "upper-case", "u", 0, "minimum number of uppercase letters")
	cmd.Flags().IntVarP(&o.policy.MinLowercase, "lower-case", "l", 0, "minimum number of lowercase letters")
	cmd.Flags().IntVarP(&o.policy.MinSymbols, "symbols", "s", 0, "minimum number of special characters")
	cmd.Flags().IntVarP(&o.policy.MinDigits, "digits", "d", 0, "minimum number of numeric characters")
	cmd.Flags().IntVarP(&o.policy.MinLength, "min-length", "m", 0, "minimum total length of the password")

	return cmd
}
