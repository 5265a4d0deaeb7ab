package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"
)

var logLevel slog.LevelVar

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "tls-client",
	Short: "Minimal client-side TLS 1.0/1.1/1.2 handshake driver",
	Long: `tls-client drives a client-side TLS handshake against a single
server and, once negotiated, pipes stdin/stdout through the resulting
encrypted stream. It exists to exercise the handshake and record-layer
packages against a real peer, not as a general-purpose TLS client.`,
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug-level logging")
	rootCmd.PersistentFlags().String("config", "", "path to a config file (YAML/TOML/JSON) supplying any of the flags below")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	cobra.OnInitialize(func() {
		if cfgPath, _ := rootCmd.PersistentFlags().GetString("config"); cfgPath != "" {
			viper.SetConfigFile(cfgPath)
			if err := viper.ReadInConfig(); err != nil {
				slog.Warn("failed to read config file", "path", cfgPath, "error", err)
			}
		}
		if viper.GetBool("debug") {
			logLevel.Set(slog.LevelDebug)
		}
	})

	rootCmd.AddCommand(connectCmd)
}
