package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/distr-app/distr/internal/db"
	"github.com/distr-app/distr/internal/security"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// defaultSQLitePath is the default SQLite database file name.
const defaultSQLitePath = "distr.db"

// BuildSQLiteDSN turns a file path into a SQLite DSN. db.Open adds the pragmas.
func BuildSQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = defaultSQLitePath
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	return dsn
}

// TestDatabaseConnection validates that the DSN can connect and ping.
func TestDatabaseConnection(dsn string) error {
	conn, err := db.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	defer func() {
		if errClose := sqlDB.Close(); errClose != nil {
			log.Errorf("sql db close error: %v", errClose)
		}
	}()
	return sqlDB.Ping()
}

// configFile maps YAML fields for the generated config file.
type configFile struct {
	Host        string     `yaml:"host"`
	Port        int        `yaml:"port"`
	DatabaseDSN string     `yaml:"database-dsn"`
	JWT         jwtCfg     `yaml:"jwt"`
	Storage     storageCfg `yaml:"storage"`
	MyTeam      myTeamCfg  `yaml:"myteam"`
}

// jwtCfg holds JWT settings for the generated config file.
type jwtCfg struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

// storageCfg holds build storage settings for the generated config file.
type storageCfg struct {
	Dir string `yaml:"dir"`
}

// myTeamCfg disables the bot until a token is configured.
type myTeamCfg struct {
	Enabled bool `yaml:"enabled"`
}

// generateJWTSecret creates a random JWT secret string.
func generateJWTSecret() (string, error) {
	secret, err := security.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return strings.ToLower(secret), nil
}

// WriteConfigFile writes the initial config file to disk.
func WriteConfigFile(configPath string, dsn string, port int) error {
	secret, errSecret := generateJWTSecret()
	if errSecret != nil {
		return errSecret
	}
	cfg := configFile{
		Port:        port,
		DatabaseDSN: dsn,
		JWT: jwtCfg{
			Secret: secret,
			Expiry: "720h",
		},
		Storage: storageCfg{Dir: "./builds"},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}

	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}

	return nil
}

// EnsureConfig writes a SQLite-backed config next to configPath when none exists.
// It reports whether a file was created.
func EnsureConfig(configPath string, port int) (bool, error) {
	if ConfigExists(configPath) {
		return false, nil
	}
	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
		return false, fmt.Errorf("create config dir: %w", errMkdir)
	}
	dsn := BuildSQLiteDSN(filepath.Join(dir, defaultSQLitePath))
	if errTest := TestDatabaseConnection(dsn); errTest != nil {
		return false, errTest
	}
	if errWrite := WriteConfigFile(configPath, dsn, port); errWrite != nil {
		return false, errWrite
	}
	return true, nil
}
