package tasks

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeflux/tempagent/pkg/agent"
	"github.com/edgeflux/tempagent/pkg/clock"
	"github.com/edgeflux/tempagent/pkg/logger"
	"github.com/edgeflux/tempagent/pkg/mqtt"
	"github.com/edgeflux/tempagent/pkg/onewire"
	"github.com/edgeflux/tempagent/pkg/server"
	"github.com/edgeflux/tempagent/pkg/system"
	"github.com/edgeflux/tempagent/pkg/uploader"
	"github.com/edgeflux/tempagent/pkg/wifi"
)

func init() {
	rootCmd.AddCommand(agentCmd)

	agentCmd.Flags().StringP("addr", "a", "0.0.0.0:8081", "Address to which the metrics HTTP server binds")
	agentCmd.Flags().StringP("endpoint", "e", "", "URL readings are uploaded to")
	agentCmd.Flags().StringP("device-id", "d", uploader.DefaultDeviceID, "Device identifier sent with every payload")
	agentCmd.Flags().DurationP("interval", "i", agent.DefaultInterval, "Delay between read cycles")
	agentCmd.Flags().String("iface", "wlan0", "Wireless interface the agent manages")
	agentCmd.Flags().String("devices-dir", onewire.DefaultDevicesDir, "Directory where the w1 subsystem exposes bus slaves")
	agentCmd.Flags().String("led", "", "Sysfs LED directory toggled as the activity indicator")
	agentCmd.Flags().String("mqtt-broker", "", "Optional MQTT broker address readings are mirrored to")
	agentCmd.Flags().String("mqtt-topic", "sensors/temperature", "Topic mirrored readings are published to")

	viper.BindPFlag("addr", agentCmd.Flags().Lookup("addr"))
	viper.BindPFlag("endpoint", agentCmd.Flags().Lookup("endpoint"))
	viper.BindPFlag("device-id", agentCmd.Flags().Lookup("device-id"))
	viper.BindPFlag("interval", agentCmd.Flags().Lookup("interval"))
	viper.BindPFlag("iface", agentCmd.Flags().Lookup("iface"))
	viper.BindPFlag("devices-dir", agentCmd.Flags().Lookup("devices-dir"))
	viper.BindPFlag("led", agentCmd.Flags().Lookup("led"))
	viper.BindPFlag("mqtt-broker", agentCmd.Flags().Lookup("mqtt-broker"))
	viper.BindPFlag("mqtt-topic", agentCmd.Flags().Lookup("mqtt-topic"))
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Starts the temperature monitoring loop",
	Long: `
Starts the agent's monitoring loop: probes are discovered once at startup,
then every cycle triggers a conversion on the bus, reads each probe and
uploads the readings while the WiFi link is up. A failed upload drives a
single immediate reconnect attempt.

WiFi credentials must be supplied via $TEMPAGENT_WIFI_SSID and
$TEMPAGENT_WIFI_PASSWORD; an optional bearer token is read from
$TEMPAGENT_API_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint := viper.GetString("endpoint")
		if endpoint == "" {
			return errors.New("Must provide an upload endpoint")
		}

		ssid, err := GetFromEnv(WifiSSIDKey)
		if err != nil {
			return err
		}

		password, err := GetFromEnv(WifiPasswordKey)
		if err != nil {
			return err
		}

		logger := logger.NewLogger()
		cl := clock.New()

		bus := onewire.NewSysfsBus(viper.GetString("devices-dir"), cl, logger)

		radio := wifi.NewNMRadio(viper.GetString("iface"), logger)

		connector := wifi.NewConnector(&wifi.Config{
			SSID:     ssid,
			Password: password,
		}, radio, cl, logger)

		up := uploader.NewHTTPUploader(&uploader.Config{
			Endpoint: endpoint,
			APIKey:   os.Getenv(APIKeyKey),
			DeviceID: viper.GetString("device-id"),
		}, &http.Client{Timeout: 10 * time.Second}, cl, logger)

		var publisher mqtt.Publisher
		if broker := viper.GetString("mqtt-broker"); broker != "" {
			publisher = mqtt.NewPublisher(&mqtt.Config{
				Broker: broker,
				Topic:  viper.GetString("mqtt-topic"),
			}, logger)

			if err := publisher.(system.Startable).Start(); err != nil {
				return err
			}
			defer publisher.(system.Stoppable).Stop()
		}

		indicator := agent.NewNoopIndicator()
		if led := viper.GetString("led"); led != "" {
			indicator = agent.NewLEDIndicator(led, logger)
		}

		srv := server.NewServer(&server.Config{
			ListenAddr: viper.GetString("addr"),
		}, logger)

		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Stop()

		a := agent.NewAgent(&agent.Config{
			Bus:       bus,
			Connector: connector,
			Uploader:  up,
			Publisher: publisher,
			Indicator: indicator,
			Clock:     cl,
			Interval:  viper.GetDuration("interval"),
			DeviceID:  viper.GetString("device-id"),
		}, logger)

		// cancel the run context on interrupt so the loop exits cleanly
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stopChan := make(chan os.Signal, 1)
		signal.Notify(stopChan, os.Interrupt)

		go func() {
			<-stopChan
			cancel()
		}()

		return a.Run(ctx)
	},
}
