package library

// Config holds the library module configuration.
type Config struct {
	DatabasePath string `env:"DATABASE_PATH" envDefault:"kanade.db"`
}
