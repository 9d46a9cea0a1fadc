package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-gate/compat"
)

var errBreaking = errors.New("contract has breaking changes")

func newContractCmd(c *cli) *cobra.Command {
	var against string

	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Print the effective host API contract",
		Long: `Prints the contract as YAML. With --against, compares it to a previous
contract and lists every change that would reject modules the previous one
admitted. Exits non-zero if there are any.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if against != "" {
				return c.runContractDiff(cmd, against)
			}
			return c.runContract(cmd)
		},
	}
	cmd.Flags().StringVar(&against, "against", "", "Previous contract or config file to compare with")
	return cmd
}

func (c *cli) runContract(cmd *cobra.Command) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(c.checker.Contract()); err != nil {
		return fmt.Errorf("encode contract: %w", err)
	}
	return enc.Close()
}

func (c *cli) runContractDiff(cmd *cobra.Command, path string) error {
	prev, err := readContract(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	current := c.checker.Contract()
	breaks := current.Breaks(prev)
	if len(breaks) == 0 {
		fmt.Fprintf(out, "%s %s is compatible with %s\n",
			c.styles.pass.Render("OK"), current.Version, prev.Version)
		return nil
	}

	fmt.Fprintf(out, "%s %s breaks modules built for %s:\n",
		c.styles.fail.Render("BREAKING"), current.Version, prev.Version)
	for _, b := range breaks {
		fmt.Fprintf(out, "  %s\n", b)
	}
	return errBreaking
}

// readContract reads a contract from either a config file (contract under
// the "contract" key) or a bare contract document.
func readContract(path string) (compat.Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return compat.Contract{}, fmt.Errorf("read %s: %w", path, err)
	}

	var wrapped struct {
		Contract compat.Contract `yaml:"contract"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return compat.Contract{}, fmt.Errorf("parse %s: %w", path, err)
	}
	contract := wrapped.Contract
	if contract.Version == "" {
		if err := yaml.Unmarshal(data, &contract); err != nil {
			return compat.Contract{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := contract.Validate(); err != nil {
		return compat.Contract{}, err
	}
	return contract, nil
}
