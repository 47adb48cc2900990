package database

import (
	"chatapp-backend/internal/config"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func setPragmaValues(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	// these next 2 extremely speed up performance of sqlite
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA synchronous = normal"); err != nil {
		return err
	}

	return nil
}

func readPragmaValues(db *sql.DB, sugar *zap.SugaredLogger) error {
	var foreignKeysValue bool
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysValue)
	if err != nil {
		return err
	}
	if !foreignKeysValue {
		return fmt.Errorf("sqlite foreign keys couldn't be enabled")
	}

	var journalModeValue string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&journalModeValue)
	if err != nil {
		return err
	}

	var synchronousValue int
	err = db.QueryRow("PRAGMA synchronous").Scan(&synchronousValue)
	if err != nil {
		return err
	}

	var synchronousValueStr string
	switch synchronousValue {
	case 0:
		synchronousValueStr = "off"
	case 1:
		synchronousValueStr = "normal"
	case 2:
		synchronousValueStr = "full"
	case 3:
		synchronousValueStr = "extra"
	default:
		return fmt.Errorf("synchronous value is unsupported")
	}

	sugar.Infof("sqlite PRAGMA foreign_keys: %t, journal_mode: %s, synchronous: %s", foreignKeysValue, journalModeValue, synchronousValueStr)
	return nil
}

func Setup(cfg *config.Config, sugar *zap.SugaredLogger) (*sql.DB, error) {
	if cfg.SelfContained {
		sugar.Infof("Connecting to database sqlite at [%s]...", cfg.SqlitePath)
		return OpenSqlite(cfg.SqlitePath, sugar)
	}

	sugar.Info("Connecting to database mysql/mariadb...")

	db, err := sql.Open("mysql", fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&timeout=10s", cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := setupTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSqlite also accepts ":memory:", which is what the tests use
func OpenSqlite(path string, sugar *zap.SugaredLogger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// there can be sqlite busy errors if this is not set to 1,
	// it also keeps a :memory: database alive on a single connection
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := setPragmaValues(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := readPragmaValues(db, sugar); err != nil {
		db.Close()
		return nil, err
	}

	if err := setupTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// the statements stick to the subset sqlite and mysql share
var tables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		email VARCHAR(64) NOT NULL UNIQUE,
		username VARCHAR(32) NOT NULL UNIQUE,
		display_name VARCHAR(64) NOT NULL,
		avatar VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL DEFAULT 'offline',
		password BINARY(60) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS servers (
		id BIGINT PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name VARCHAR(100) NOT NULL,
		description TEXT,
		icon VARCHAR(255) NOT NULL DEFAULT '',
		template VARCHAR(32) NOT NULL DEFAULT 'custom',
		boost_level INTEGER NOT NULL DEFAULT 0,
		boost_count INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGINT PRIMARY KEY,
		server_id BIGINT NOT NULL,
		name VARCHAR(100) NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS channels (
		id BIGINT PRIMARY KEY,
		server_id BIGINT NOT NULL,
		category_id BIGINT NULL,
		name VARCHAR(100) NOT NULL,
		type VARCHAR(16) NOT NULL DEFAULT 'text',
		topic TEXT,
		position INTEGER NOT NULL DEFAULT 0,
		private BOOLEAN NOT NULL DEFAULT FALSE,
		FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE,
		FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGINT PRIMARY KEY,
		channel_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		content TEXT NOT NULL,
		edited_at BIGINT NULL,
		FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id BIGINT PRIMARY KEY,
		message_id BIGINT NOT NULL,
		filename VARCHAR(255) NOT NULL,
		file_type VARCHAR(100) NOT NULL,
		url VARCHAR(255) NOT NULL,
		FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS server_members (
		id BIGINT PRIMARY KEY,
		server_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		nickname VARCHAR(64) NOT NULL DEFAULT '',
		member_rank VARCHAR(16) NOT NULL DEFAULT 'member',
		joined_at BIGINT NOT NULL,
		UNIQUE (server_id, user_id),
		FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS roles (
		id BIGINT PRIMARY KEY,
		server_id BIGINT NOT NULL,
		name VARCHAR(100) NOT NULL,
		color VARCHAR(7) NOT NULL DEFAULT '#99AAB5',
		permissions BIGINT NOT NULL DEFAULT 0,
		FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS member_roles (
		member_id BIGINT NOT NULL,
		role_id BIGINT NOT NULL,
		PRIMARY KEY (member_id, role_id),
		FOREIGN KEY (member_id) REFERENCES server_members(id) ON DELETE CASCADE,
		FOREIGN KEY (role_id) REFERENCES roles(id) ON DELETE CASCADE
	)`,
	// pair_low and pair_high hold the unordered pair so a second request
	// in either direction hits the unique constraint
	`CREATE TABLE IF NOT EXISTS friend_associations (
		id BIGINT PRIMARY KEY,
		user1_id BIGINT NOT NULL,
		user2_id BIGINT NOT NULL,
		pair_low BIGINT NOT NULL,
		pair_high BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		UNIQUE (pair_low, pair_high),
		FOREIGN KEY (user1_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (user2_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
}

func setupTables(db *sql.DB) error {
	for _, statement := range tables {
		if _, err := db.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}
