package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors and halts execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Ledger settings are kept as raw strings here and
// parsed by the packages that own them (model, codec, wallet).
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign operator JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	SessionTTLH  int    // refresh session time-to-live in hours (one gate shift)
	BcryptCost   int    // bcrypt cost for operator password hashing

	ProgramID      string // base58 program address
	LedgerDriver   string // "mysql" or "memory"
	SeedBalance    uint64 // memory driver: balance credited to the scanner at startup
	ScannerEvent   string // base58 event address served by the gate agent (optional)
	ScannerKeypair string // path to the scanner's 64-byte JSON keypair file

	DiscriminatorEvent   string // 16 hex chars, empty keeps the default
	DiscriminatorTicket  string
	DiscriminatorListing string

	PresentationMaxSkew time.Duration // tolerated holder clock drift
	ScannerHealthSpec   string        // cron spec for the balance check, empty disables it
	ScannerMinBalance   uint64        // balance under which the health check warns
	ActivityConsumer    bool          // run the activity log consumer in-process
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:          must("APP_ENV"),                  // environment (dev/test/prod)
		Port:         must("APP_PORT"),                 // port to bind the HTTP server
		JWTSecret:    must("JWT_SECRET"),               // secret used for signing JWTs
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),  // TTL for access tokens in minutes
		SessionTTLH:  envInt("SESSION_TTL_HOURS", 12),  // refresh sessions
		BcryptCost:   envInt("BCRYPT_COST", 10),        // bcrypt cost factor
		ProgramID:    must("PROGRAM_ID"),               // deployment address
		LedgerDriver: envStr("LEDGER_DRIVER", "mysql"), // where ledger state lives

		SeedBalance:    envUint("LEDGER_SEED_BALANCE", 0),
		ScannerEvent:   os.Getenv("SCANNER_EVENT"),
		ScannerKeypair: must("SCANNER_KEYPAIR"),

		DiscriminatorEvent:   os.Getenv("DISCRIMINATOR_EVENT"),
		DiscriminatorTicket:  os.Getenv("DISCRIMINATOR_TICKET"),
		DiscriminatorListing: os.Getenv("DISCRIMINATOR_LISTING"),

		PresentationMaxSkew: envDur("PRESENTATION_MAX_SKEW", 5*time.Second),
		ScannerHealthSpec:   envStr("SCANNER_HEALTH_SPEC", "@every 1m"),
		ScannerMinBalance:   envUint("SCANNER_MIN_BALANCE", 10_000_000),
		ActivityConsumer:    envBool("ACTIVITY_CONSUMER", false),
	}
	if cfg.LedgerDriver != "mysql" && cfg.LedgerDriver != "memory" {
		log.Fatalf("invalid LEDGER_DRIVER %q (want mysql or memory)", cfg.LedgerDriver)
	}
	// The operator table lives in MySQL for both drivers.
	cfg.DBUser = must("DB_USER")
	cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
	cfg.DBHost = must("DB_HOST")
	cfg.DBPort = must("DB_PORT")
	cfg.DBName = must("DB_NAME")
	return cfg
}

// AccessTTL is AccessTTLMin as a duration.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// SessionTTL is SessionTTLH as a duration.
func (c Config) SessionTTL() time.Duration { return time.Duration(c.SessionTTLH) * time.Hour }

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envUint(k string, d uint64) uint64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", k, v, d)
		return d
	}
	return n
}
