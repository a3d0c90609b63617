package ledger

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AuthTokenEnv names the environment variable holding the auth token for
// hosted ledger databases.
const AuthTokenEnv = "SCRIBBLE_LIBSQL_AUTH_TOKEN"

var remoteSchemes = []string{"libsql://", "https://", "http://"}

// isRemote reports whether dsn names a hosted database rather than a
// local file path.
func isRemote(dsn string) bool {
	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

// openDialector resolves a DSN to the driver that serves it: remote URLs
// go through the libsql connector, local paths through the pure-Go sqlite
// driver (no cgo toolchain needed for the common case).
func openDialector(dsn string) (gorm.Dialector, error) {
	if !isRemote(dsn) {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create ledger directory: %w", err)
			}
		}
		return sqlite.Open(dsn), nil
	}

	var opts []libsql.Option
	if token := os.Getenv(AuthTokenEnv); token != "" {
		opts = append(opts, libsql.WithAuthToken(token))
	}
	connector, err := libsql.NewConnector(dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("create libsql connector: %w", err)
	}
	return gormsqlite.New(gormsqlite.Config{
		DriverName: "libsql",
		Conn:       sql.OpenDB(connector),
		DSN:        dsn,
	}), nil
}

// Connect opens the ledger database named by dsn and brings its schema up
// to date. Arm and disarm are two halves of one transaction that span
// separate process invocations, so foreign keys stay on and the schema
// migrates eagerly rather than lazily at first write.
func Connect(dsn string, debug bool) (*gorm.DB, error) {
	dialector, err := openDialector(dsn)
	if err != nil {
		return nil, err
	}

	logMode := logger.Default.LogMode(logger.Silent)
	if debug {
		logMode = logger.Default.LogMode(logger.Info)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logMode})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", dsn, err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Exec("PRAGMA foreign_keys = ON")
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return db, nil
}

// Migrate runs the schema migrations.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Run{}, &ArmedFile{})
}

// Digest is the checksum recorded and verified around arm/disarm.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
