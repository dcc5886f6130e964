// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cedarbackend/internal/logger"
)

// Variables loaded once at startup, read through the getters below.
var (
	medusaBackendURL     string
	medusaPublishableKey string
	medusaRegionID       string
	stripeSecretKey      string
	stripePublishableKey string

	allowedOrigin string
	dbPath        string
	catalogPath   string
	sessionTTL    time.Duration
)

const defaultSessionTTL = 45 * time.Minute

// GetEnvBasedSetting resolves a setting name based on ENVIRONMENT (dev or prod),
// e.g. base "ALLOWED_ORIGIN" reads ALLOWED_ORIGIN_DEV or ALLOWED_ORIGIN_PROD.
func GetEnvBasedSetting(base string) string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	return os.Getenv(fmt.Sprintf("%s_%s", base, strings.ToUpper(env)))
}

// LoadEnv reads the .env file if present; system environment wins otherwise.
func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Could not determine working directory: %v", err)
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found in %s. Using system environment variables.", wd)
	} else {
		log.Printf("Loaded environment variables from .env file in %s", wd)
	}
}

// LoggerConfig returns a logger.Config populated from environment.
func LoggerConfig() logger.Config {
	logDir := GetEnvBasedSetting("LOGS_DIRECTORY")
	if logDir == "" {
		logDir = "./logs"
	}

	logFormat := os.Getenv("LOG_FILE_FORMAT")
	if logFormat == "" {
		logFormat = "server_%s.log"
	}

	timezone := os.Getenv("TIME_ZONE")
	if timezone == "" {
		timezone = "Local"
	}

	return logger.Config{
		LogsDirectory: logDir,
		LogFileFormat: logFormat,
		TimeZone:      timezone,
	}
}

// LoadStoreConfig reads the Medusa and Stripe settings. It does not fail when
// they are absent: an unconfigured store disables checkout instead of refusing
// to boot, so the contact and newsletter endpoints keep working.
func LoadStoreConfig() {
	medusaBackendURL = strings.TrimRight(os.Getenv("MEDUSA_BACKEND_URL"), "/")
	medusaPublishableKey = os.Getenv("MEDUSA_PUBLISHABLE_KEY")
	medusaRegionID = os.Getenv("MEDUSA_REGION_ID")
	stripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	stripePublishableKey = os.Getenv("STRIPE_PUBLISHABLE_KEY")

	if medusaBackendURL != "" && !strings.HasPrefix(medusaBackendURL, "http") {
		logger.LogWarn("MEDUSA_BACKEND_URL must be a full URL (e.g. http://localhost:9000), got %q", medusaBackendURL)
	}

	if CheckoutConfigured() {
		logger.LogInfo("Checkout configured against %s (region %s)", medusaBackendURL, medusaRegionID)
	} else {
		logger.LogWarn("Checkout disabled: Medusa/Stripe configuration incomplete")
	}
}

// CheckoutConfigured reports whether every external credential the checkout
// flow needs is present. When false the whole checkout surface is gated off.
func CheckoutConfigured() bool {
	return medusaBackendURL != "" &&
		medusaPublishableKey != "" &&
		medusaRegionID != "" &&
		stripeSecretKey != ""
}

// LoadCORSConfig loads CORS settings.
func LoadCORSConfig() {
	allowedOrigin = GetEnvBasedSetting("ALLOWED_ORIGIN")
	if allowedOrigin == "" {
		allowedOrigin = "*" // Allow all - be careful in prod
		logger.LogWarn("ALLOWED_ORIGIN not set, using '*' (allow all origins)")
	} else {
		logger.LogInfo("Allowed Origin: %s", allowedOrigin)
	}
}

// LoadDataConfig resolves the local database and catalog file paths.
func LoadDataConfig() {
	dbPath = os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/store.db"
	}

	catalogPath = os.Getenv("CATALOG_PATH")

	sessionTTL = defaultSessionTTL
	if raw := os.Getenv("SESSION_TTL_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			logger.LogWarn("Invalid SESSION_TTL_MINUTES: %s, using default %v", raw, defaultSessionTTL)
		} else {
			sessionTTL = time.Duration(minutes) * time.Minute
		}
	}
}

// LogCurrentEnvironment logs which environment is running.
func LogCurrentEnvironment() {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	logger.LogInfo("Running in %s environment", env)
}

//
// --- Getters (exported) ---
//

func MedusaBackendURL() string {
	return medusaBackendURL
}

func MedusaPublishableKey() string {
	return medusaPublishableKey
}

func MedusaRegionID() string {
	return medusaRegionID
}

func StripeSecretKey() string {
	return stripeSecretKey
}

func StripePublishableKey() string {
	return stripePublishableKey
}

func AllowedOrigin() string {
	return allowedOrigin
}

func DBPath() string {
	return dbPath
}

func CatalogPath() string {
	return catalogPath
}

func SessionTTL() time.Duration {
	return sessionTTL
}
