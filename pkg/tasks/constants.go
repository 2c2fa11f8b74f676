package tasks

const (
	// WifiSSIDKey is the environment variable which must hold the SSID of the
	// network the agent joins.
	WifiSSIDKey = "TEMPAGENT_WIFI_SSID"

	// WifiPasswordKey is the environment variable which must hold the
	// network's password.
	WifiPasswordKey = "TEMPAGENT_WIFI_PASSWORD"

	// APIKeyKey is the environment variable which may hold a bearer token for
	// the upload endpoint.
	APIKeyKey = "TEMPAGENT_API_KEY"
)
