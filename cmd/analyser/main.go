package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultServer = "http://localhost:8000"

type app struct {
	v   *viper.Viper
	out io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "analyser",
		Short:         "Blood test report analyser client",
		Long:          "Submits blood test reports to an analyser server and inspects queued jobs and stored results.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	a.v.SetEnvPrefix("ANALYSER_CLI")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.PersistentFlags().StringP("server", "s", defaultServer, "analyser server base URL")
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().Duration("timeout", 0, "request timeout (0 waits for the server)")
	_ = a.v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = a.v.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	_ = a.v.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))

	root.AddCommand(a.analyzeCmd())
	root.AddCommand(a.jobsCmd())
	root.AddCommand(a.resultsCmd())
	return root
}

func (a *app) client() *client {
	return newClient(a.v.GetString("server"), a.v.GetDuration("timeout"))
}

func (a *app) jsonOutput() bool {
	return a.v.GetBool("json")
}
