package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	goRBAC "github.com/MrEthical07/goRBAC"
)

// BuildVersion is set at link time.
var BuildVersion = "dev"

// errDenied makes the process exit non-zero without printing usage.
var errDenied = errors.New("one or more checks denied")

type globalFlags struct {
	policy  string
	verbose int
	strict  bool
}

// NewRootCmd builds the command tree. Each call returns independent flag state.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "rbacctl",
		Short:         "goRBAC policy tool",
		Long:          "Validate goRBAC policy files, check permissions against them and benchmark the engine.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.policy, "policy", "p", "", "policy file or directory (.yaml, .yml, .json)")
	root.PersistentFlags().CountVarP(&g.verbose, "verbose", "v", "diagnostic log verbosity, repeat for more")
	root.PersistentFlags().BoolVar(&g.strict, "strict", false, "report unknown roles and malformed permissions as errors")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of rbacctl",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s\n", BuildVersion)
		},
	})
	root.AddCommand(newValidateCmd(g), newCheckCmd(g), newBenchCmd(g))
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil && !errors.Is(err, errDenied) {
		root.PrintErrln("Error:", err)
	}
	return err
}

func (g *globalFlags) logger(w io.Writer) logr.Logger {
	stdr.SetVerbosity(g.verbose)
	return stdr.New(log.New(w, "rbacctl ", log.LstdFlags))
}

// engine loads the policy and builds an engine from it. mutate may adjust
// the builder before Build.
func (g *globalFlags) engine(cmd *cobra.Command, mutate func(*goRBAC.Builder)) (*goRBAC.Engine, goRBAC.Policy, error) {
	if g.policy == "" {
		return nil, goRBAC.Policy{}, errors.New("--policy is required")
	}
	policy, err := goRBAC.LoadPolicyFile(g.policy)
	if err != nil {
		return nil, goRBAC.Policy{}, err
	}

	logger := g.logger(cmd.ErrOrStderr())
	logger.V(1).Info("policy loaded", "path", g.policy, "permissions", len(policy.Permissions), "roles", len(policy.Roles))

	b := goRBAC.New().WithPolicy(policy).WithLogger(logger)
	if g.strict {
		b.WithStrictMode(true)
	}
	if mutate != nil {
		mutate(b)
	}
	engine, err := b.Build()
	if err != nil {
		return nil, policy, fmt.Errorf("build engine: %w", err)
	}
	return engine, policy, nil
}
