package tasks

import (
	"log"
	"strings"

	raven "github.com/getsentry/raven-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeflux/tempagent/pkg/version"
)

func init() {
	viper.SetEnvPrefix("tempagent")
	viper.AutomaticEnv()
	replacer := strings.NewReplacer("-", "_")
	viper.SetEnvKeyReplacer(replacer)
}

var rootCmd = &cobra.Command{
	Use:   version.BinaryName,
	Short: "One-wire temperature telemetry agent",
	Long: `This tool reads DS18B20 temperature probes attached to a one-wire bus and
periodically uploads each reading as JSON to a configured HTTP endpoint,
keeping a WiFi station link up along the way.

Readings can optionally be mirrored to an MQTT broker, and the agent exposes
Prometheus metrics plus a pulse endpoint over HTTP for observability.

WiFi credentials and the API key are read from the environment; everything
else is configured through flags.
`,
	Version: version.VersionString(),
}

// Execute is our main entrypoint to the application
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		raven.CaptureErrorAndWait(err, nil)
		log.Fatal(err)
	}
}
