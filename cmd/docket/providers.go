package main

import (
	"github.com/spf13/cobra"
)

var providersCheck bool

// providerInfo describes one registered adapter.
type providerInfo struct {
	Name      string   `json:"name" yaml:"name"`
	Type      string   `json:"type" yaml:"type"`
	Models    []string `json:"models" yaml:"models"`
	Connected *bool    `json:"connected,omitempty" yaml:"connected,omitempty"`
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers",
	Long: `Providers lists the enabled providers that have credentials.

Examples:
  docket providers
  docket providers --check   # send a minimal request to each provider`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		reg := a.registry()
		var out []providerInfo
		for _, name := range reg.List() {
			adapter, err := reg.Get(name)
			if err != nil {
				return err
			}
			info := providerInfo{Name: name, Type: adapter.Name(), Models: adapter.SupportedModels()}
			if providersCheck {
				ok := adapter.ValidateConnection(cmd.Context())
				info.Connected = &ok
			}
			out = append(out, info)
		}
		return a.printer.Print(out)
	},
}

func init() {
	providersCmd.Flags().BoolVar(&providersCheck, "check", false, "validate each provider connection")
}
