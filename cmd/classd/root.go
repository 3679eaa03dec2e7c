package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"classd/internal/config"
	"classd/internal/registry"
	"classd/pkg/types"
)

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newRootCmd builds the classd command tree.
func newRootCmd() *cobra.Command {
	var cfgPath string
	cfg := config.Config{}

	root := &cobra.Command{
		Use:           "classd",
		Short:         "Image-classification model lifecycle daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// Empty defaults so a config file can fill unspecified fields; hard
	// defaults are applied last in serve.
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Optional config file (.yaml/.json/.toml)")
	root.PersistentFlags().StringVar(&cfg.Addr, "addr", envOr("CLASSD_ADDR", ""), "HTTP listen address (default :8080)")
	root.PersistentFlags().StringVar(&cfg.BundledDir, "bundled-dir", envOr("CLASSD_BUNDLED_DIR", ""), "Directory holding bundled local model files (default ./models)")
	root.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", envOr("CLASSD_DATA_DIR", ""), "Directory downloaded remote models are installed into (default ./data)")
	root.PersistentFlags().StringVar(&cfg.StatePath, "state-path", envOr("CLASSD_STATE_PATH", ""), "Path of the persisted download-state file (default <data-dir>/state.json)")
	root.PersistentFlags().StringVar(&cfg.RegistryURL, "registry-url", envOr("CLASSD_REGISTRY_URL", ""), "Base URL of the remote model registry")
	root.PersistentFlags().StringVar(&cfg.OnnxLibPath, "onnx-lib", envOr("CLASSD_ONNX_LIB", ""), "Path to the ONNX runtime shared library")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			return nil
		}
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		// File values fill in whatever flags/env left unspecified.
		mergeConfig(&cfg, loaded)
		return nil
	}

	root.AddCommand(newServeCmd(&cfg))
	root.AddCommand(newModelsCmd())
	return root
}

// mergeConfig copies file values into dst for fields still at their zero
// value after flag/env resolution. Flags win over the file.
func mergeConfig(dst *config.Config, file config.Config) {
	if dst.Addr == "" {
		dst.Addr = file.Addr
	}
	if dst.BundledDir == "" {
		dst.BundledDir = file.BundledDir
	}
	if dst.DataDir == "" {
		dst.DataDir = file.DataDir
	}
	if dst.StatePath == "" {
		dst.StatePath = file.StatePath
	}
	if dst.RegistryURL == "" {
		dst.RegistryURL = file.RegistryURL
	}
	if dst.OnnxLibPath == "" {
		dst.OnnxLibPath = file.OnnxLibPath
	}
	if dst.Checksums == nil {
		dst.Checksums = file.Checksums
	}
}

// newModelsCmd lists every defined model identity.
func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the defined model identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range registry.All() {
				line := fmt.Sprintf("%-8s %-10s %s", id.Kind, id.Variant, registry.Describe(id))
				if id.Kind == types.KindLocal {
					line += "  (" + registry.BundledFilename(id) + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}
