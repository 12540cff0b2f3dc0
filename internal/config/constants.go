package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	// DefaultRequestTimeout bounds each store operation.
	DefaultRequestTimeout = 10 * time.Second

	defaultPort     = 3000
	defaultEnv      = "development"
	defaultLogLevel = "info"
	defaultLogDir   = "logs"
	defaultCacheTTL = 5 * time.Minute

	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"

	defaultDBDriver         = DriverPostgres
	defaultDBHost           = "127.0.0.1"
	defaultPostgresPort     = 5432
	defaultMySQLPort        = 3306
	defaultDBUser           = "perse"
	defaultDBPassword       = "perse"
	defaultDBName           = "perse"
	defaultDBSSLMode        = "disable"
	defaultSQLitePath       = "perse.db"
	defaultDBMaxConnections = 10

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0
)

// Environment variables read on top of the YAML file.
const (
	EnvDatabaseURL            = "PERSE_DATABASE_URL"
	EnvDatabaseMaxConnections = "PERSE_DATABASE_MAX_CONNECTIONS"
	EnvRedisURL               = "PERSE_REDIS_URL"
	EnvPort                   = "PERSE_PORT"
	EnvJWTSecret              = "PERSE_JWT_SECRET"
)
