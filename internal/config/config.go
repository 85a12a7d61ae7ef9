package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Thresholds     ThresholdConfig
	Bounds         BoundsConfig
	Logging        LoggingConfig
	Storage        StorageConfig
	FaultInjection FaultInjectionConfig
	Client         ClientConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	NatsSubject        string
	RedisURL           string
	SummaryTopic       string
}

type DatabaseConfig struct {
	Connection string
}

type ThresholdConfig struct {
	Voltage              float64
	Impedance            float64
	DeviationPercent     float64
	TemperatureDelta     float64
	MinSamplesForAverage int
}

type BoundsConfig struct {
	ResistanceMin float64
	ResistanceMax float64
	RangeMin      float64
	RangeMax      float64
}

type LoggingConfig struct {
	DetailedConsole bool
	WarningConsole  bool
	File            bool
	Statistics      bool
	Directory       string
}

type StorageConfig struct {
	DataDir          string
	FailedSamplesDir string
}

type FaultInjectionConfig struct {
	AcceptedWriteFailureRate float64
}

type ClientConfig struct {
	ServerURL      string
	MockDataDir    string
	TimeoutSeconds int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() *Config {
	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "Logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			NatsSubject:        getEnv("NATS_SUBJECT", "eis.events"),
			RedisURL:           getEnv("REDIS_URL", ""),
			SummaryTopic:       getEnv("TRANSFER_SUMMARY_TOPIC", "TRANSFER_COMPLETED"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Thresholds: ThresholdConfig{
			Voltage:              getEnvAsFloat("V_THRESHOLD", 3.5),
			Impedance:            getEnvAsFloat("Z_THRESHOLD", 0.05),
			DeviationPercent:     getEnvAsFloat("DEVIATION_PERCENT", 25),
			TemperatureDelta:     getEnvAsFloat("T_THRESHOLD", 5.0),
			MinSamplesForAverage: getEnvAsInt("MIN_SAMPLES_FOR_AVERAGE", 5),
		},
		Bounds: BoundsConfig{
			ResistanceMin: getEnvAsFloat("R_MIN", 0.0),
			ResistanceMax: getEnvAsFloat("R_MAX", 1.0),
			RangeMin:      getEnvAsFloat("RANGE_MIN", 0.0),
			RangeMax:      getEnvAsFloat("RANGE_MAX", 1000),
		},
		Logging: LoggingConfig{
			DetailedConsole: getEnvAsBool("ENABLE_DETAILED_CONSOLE_LOGGING", false),
			WarningConsole:  getEnvAsBool("ENABLE_WARNING_CONSOLE_LOGGING", true),
			File:            getEnvAsBool("ENABLE_FILE_LOGGING", true),
			Statistics:      getEnvAsBool("ENABLE_STATISTICS", true),
			Directory:       getEnv("LOG_DIRECTORY", "Logs"),
		},
		Storage: StorageConfig{
			DataDir:          getEnv("DATA_DIR", "Data"),
			FailedSamplesDir: getEnv("FAILED_SAMPLES_DIR", "FailedSamples"),
		},
		FaultInjection: FaultInjectionConfig{
			AcceptedWriteFailureRate: getEnvAsFloat("ACCEPTED_WRITE_FAILURE_RATE", 0),
		},
		Client: ClientConfig{
			ServerURL:      getEnv("EIS_SERVER_URL", "http://localhost:3000"),
			MockDataDir:    getEnv("MOCK_DATA_DIR", "MockData"),
			TimeoutSeconds: getEnvAsInt("CLIENT_TIMEOUT_SECONDS", 10),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
