package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration values.
type Config struct {
	HostIP   string // Host IP for the server
	RESTPort int    // Port for the REST and websocket API
	GinMode  string // Mode for the Gin framework (e.g., release, debug, test)
	LogLevel string // Minimum log level (debug, info, warning, error)

	OperatorSecret    string // Secret seed of the account that submits match transactions
	ContractID        string // Strkey of the wager contract
	RPCURL            string // Soroban RPC endpoint
	NetworkPassphrase string // Passphrase of the network the contract lives on
	BaseFee           int    // Inclusion fee in stroops, before resource fees
	TxTimeoutSeconds  int    // Validity window of built transactions

	PollAttempts       int // Status polls before a submitted transaction is abandoned
	PollIntervalMS     int // Delay between status polls
	AuthTimeoutSeconds int // How long a match waits for both authorizations

	RedisAddr            string // Redis address backing the submission lock
	RedisPassword        string // Redis password, empty for none
	SubmitLockTTLSeconds int    // Expiry of the submission lock

	DBHost     string // Hostname or IP address for the database
	DBPort     int    // Port number for the database
	DBUser     string // Username for the database
	DBPassword string // Password for the database
	DBName     string // Name of the database

	JWTSecret       string // Secret key for JWT signing
	JWTIssuer       string // Issuer claim for JWTs
	OperatorKey     string // Key exchanged for an operator token
	TokenTTLMinutes int    // Lifetime of issued operator tokens
}

// Envs holds the application's configuration loaded from environment variables.
var Envs = initConfig()

// initConfig initializes and returns the application configuration.
// It loads environment variables from a .env file.
func initConfig() Config {
	// Load .env file if available
	if err := godotenv.Load(); err != nil {
		log.Printf("[APP] [INFO] .env file not found or could not be loaded: %v", err)
	}

	return Config{
		HostIP:   mustGetEnv("HOST_IP"),
		RESTPort: mustGetEnvAsInt("REST_PORT"),
		GinMode:  getEnvWithDefault("GIN_MODE", "release"),
		LogLevel: getEnvWithDefault("LOG_LEVEL", LogLevelInfo),

		OperatorSecret:    mustGetEnv("OPERATOR_SECRET"),
		ContractID:        mustGetEnv("CONTRACT_ID"),
		RPCURL:            mustGetEnv("RPC_URL"),
		NetworkPassphrase: mustGetEnv("NETWORK_PASSPHRASE"),
		BaseFee:           getEnvAsIntWithDefault("BASE_FEE", 100),
		TxTimeoutSeconds:  getEnvAsIntWithDefault("TX_TIMEOUT_SECONDS", 30),

		PollAttempts:       getEnvAsIntWithDefault("POLL_ATTEMPTS", 5),
		PollIntervalMS:     getEnvAsIntWithDefault("POLL_INTERVAL_MS", 2000),
		AuthTimeoutSeconds: getEnvAsIntWithDefault("AUTH_TIMEOUT_SECONDS", 60),

		RedisAddr:            mustGetEnv("REDIS_ADDR"),
		RedisPassword:        getEnvWithDefault("REDIS_PASSWORD", ""),
		SubmitLockTTLSeconds: getEnvAsIntWithDefault("SUBMIT_LOCK_TTL_SECONDS", 60),

		DBHost:     mustGetEnv("DB_HOST"),
		DBPort:     mustGetEnvAsInt("DB_PORT"),
		DBUser:     mustGetEnv("DB_USER"),
		DBPassword: mustGetEnv("DB_PASS"),
		DBName:     mustGetEnv("DB_NAME"),

		JWTSecret:       mustGetEnv("JWT_SECRET"),
		JWTIssuer:       mustGetEnv("JWT_ISSUER"),
		OperatorKey:     mustGetEnv("OPERATOR_KEY"),
		TokenTTLMinutes: getEnvAsIntWithDefault("TOKEN_TTL_MINUTES", 60),
	}
}

// mustGetEnv retrieves the value of an environment variable or logs a fatal error if not set.
func mustGetEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		log.Fatalf("[APP] [FATAL] Environment variable %s is not set", key)
	}
	return value
}

// mustGetEnvAsInt retrieves the value of an environment variable as an integer or logs a fatal error if not set or cannot be parsed.
func mustGetEnvAsInt(key string) int {
	valueStr := mustGetEnv(key)
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Fatalf("[APP] [FATAL] Environment variable %s must be an integer: %v", key, err)
	}
	return value
}

// getEnvWithDefault retrieves the value of an environment variable or returns a default value if not set.
func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if _, exists := os.LookupEnv(key); !exists {
		return defaultValue
	}
	return mustGetEnvAsInt(key)
}
