package relay

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":5000")
	ListenAddr string

	// AllowOrigins is the CORS allow list, comma separated. "*" allows any origin.
	AllowOrigins string
}
