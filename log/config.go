package log

// Config is the configuration struct for the log package.
//
// Can be deserialized from YAML, and Level can be overridden by the LOG_LEVEL
// environment variable.
type Config struct {
	// Level is the log level you want to set your service to.
	//
	// Defaults to InfoLevel.
	Level Level `yaml:"level" env:"LOG_LEVEL"`

	// Console switches from the JSON format to the console format.
	Console bool `yaml:"console" env:"LOG_CONSOLE"`
}

// InitFromConfig initializes the global logger using the given Config.
func InitFromConfig(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = InfoLevel
	}
	if cfg.Console {
		InitLogger(cfg.Level)
		return
	}
	InitLoggerJSON(cfg.Level)
}
