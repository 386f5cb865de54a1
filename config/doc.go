// Package config loads service configuration with Viper.
//
// LoadConfig reads config.yml (searched under ./cmd/<service>, ./config
// and the working directory unless a path is given), loads an optional
// .env file with godotenv and lets environment variables override file
// values. With WithEnvPrefix("FLOWKIT"), FLOWKIT_SERVER_PORT sets
// server.port and FLOWKIT_AUTH_JWT_SECRET sets auth.jwt.secret.
package config
