package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"proxybot/internal/database/models"
	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

// NewDatabase creates a new database connection
func NewDatabase(dbPath string) (*Database, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	// Open database connection
	db, err := sql.Open("sqlite", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}

	database := &Database{db: db}

	// Run migrations
	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	log.Println("✅ Database connected and migrated successfully")
	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// GetDB returns the underlying sql.DB instance
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// migrate runs database migrations
func (d *Database) migrate() error {
	migrations := []string{
		createProfilesTable,
		createAutoproxyTable,
		createBlacklistsTable,
		createWebhooksTable,
		createSwitchesTable,
		createIndexes,
	}

	for i, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %v", i+1, err)
		}
	}

	log.Println("✅ Database migrations completed")
	return nil
}

// Migration SQL statements.
// Each collection of the proxy data model is stored as a JSON document
// keyed the way lookups happen: profiles by user, autoproxy by
// user_guild key, blacklists by guild, webhooks by (channel, guild).
const createProfilesTable = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const createAutoproxyTable = `
CREATE TABLE IF NOT EXISTS autoproxy (
    key TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const createBlacklistsTable = `
CREATE TABLE IF NOT EXISTS blacklists (
    guild_id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const createWebhooksTable = `
CREATE TABLE IF NOT EXISTS webhooks (
    channel_id TEXT NOT NULL,
    guild_id TEXT NOT NULL,
    webhook_id TEXT NOT NULL,
    webhook_token TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (channel_id, guild_id)
);`

const createSwitchesTable = `
CREATE TABLE IF NOT EXISTS switches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    alter_name TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_switches_user_id ON switches(user_id, created_at);
`

// Profile persistence methods

// GetProfile returns a user's profile document, or nil if none exists
func (d *Database) GetProfile(userID string) (*models.Profile, error) {
	var data string
	err := d.db.QueryRow("SELECT data FROM profiles WHERE user_id = ?", userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %v", err)
	}

	var profile models.Profile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %v", userID, err)
	}
	if profile.Alters == nil {
		profile.Alters = make(map[string]models.Alter)
	}
	profile.UserID = userID
	return &profile, nil
}

// SaveProfile upserts a user's profile document
func (d *Database) SaveProfile(userID string, profile *models.Profile) error {
	profile.UserID = userID
	profile.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %v", err)
	}

	_, err = d.db.Exec(`
		INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data), profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save profile: %v", err)
	}
	return nil
}

// DeleteProfile removes a user's profile and their autoproxy settings
func (d *Database) DeleteProfile(userID string) error {
	if _, err := d.db.Exec("DELETE FROM profiles WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete profile: %v", err)
	}
	if _, err := d.db.Exec("DELETE FROM autoproxy WHERE key LIKE ?", userID+"_%"); err != nil {
		return fmt.Errorf("failed to delete autoproxy settings: %v", err)
	}
	return nil
}

// AllProfiles returns every stored profile keyed by user id
func (d *Database) AllProfiles() (map[string]*models.Profile, error) {
	rows, err := d.db.Query("SELECT user_id, data FROM profiles")
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %v", err)
	}
	defer rows.Close()

	profiles := make(map[string]*models.Profile)
	for rows.Next() {
		var userID, data string
		if err := rows.Scan(&userID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %v", err)
		}

		var profile models.Profile
		if err := json.Unmarshal([]byte(data), &profile); err != nil {
			// One corrupt document must not poison a full cache rebuild
			log.Printf("⚠️ Skipping undecodable profile %s: %v", userID, err)
			continue
		}
		if profile.Alters == nil {
			profile.Alters = make(map[string]models.Alter)
		}
		profile.UserID = userID
		profiles[userID] = &profile
	}

	return profiles, rows.Err()
}

// Autoproxy persistence methods

// GetAutoproxy returns autoproxy settings for a user+guild key, or the
// disabled default if none are stored
func (d *Database) GetAutoproxy(key string) (models.AutoproxySettings, error) {
	defaults := models.AutoproxySettings{Mode: models.AutoproxyModeOff}

	var data string
	err := d.db.QueryRow("SELECT data FROM autoproxy WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("failed to query autoproxy settings: %v", err)
	}

	var settings models.AutoproxySettings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return defaults, fmt.Errorf("failed to decode autoproxy settings %s: %v", key, err)
	}
	return settings, nil
}

// SaveAutoproxy upserts autoproxy settings for a user+guild key
func (d *Database) SaveAutoproxy(key string, settings models.AutoproxySettings) error {
	settings.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode autoproxy settings: %v", err)
	}

	_, err = d.db.Exec(`
		INSERT INTO autoproxy (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, string(data), settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save autoproxy settings: %v", err)
	}
	return nil
}

// AllAutoproxy returns every stored autoproxy rule keyed by user+guild key
func (d *Database) AllAutoproxy() (map[string]models.AutoproxySettings, error) {
	rows, err := d.db.Query("SELECT key, data FROM autoproxy")
	if err != nil {
		return nil, fmt.Errorf("failed to query autoproxy settings: %v", err)
	}
	defer rows.Close()

	all := make(map[string]models.AutoproxySettings)
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("failed to scan autoproxy settings: %v", err)
		}

		var settings models.AutoproxySettings
		if err := json.Unmarshal([]byte(data), &settings); err != nil {
			log.Printf("⚠️ Skipping undecodable autoproxy settings %s: %v", key, err)
			continue
		}
		all[key] = settings
	}

	return all, rows.Err()
}

// Blacklist persistence methods

// GetBlacklist returns the proxy blacklist for a guild, or an empty one
func (d *Database) GetBlacklist(guildID string) (models.Blacklist, error) {
	empty := models.Blacklist{GuildID: guildID, Channels: []string{}, Categories: []string{}}

	var data string
	err := d.db.QueryRow("SELECT data FROM blacklists WHERE guild_id = ?", guildID).Scan(&data)
	if err == sql.ErrNoRows {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("failed to query blacklist: %v", err)
	}

	var blacklist models.Blacklist
	if err := json.Unmarshal([]byte(data), &blacklist); err != nil {
		return empty, fmt.Errorf("failed to decode blacklist %s: %v", guildID, err)
	}
	blacklist.GuildID = guildID
	return blacklist, nil
}

// SaveBlacklist upserts the proxy blacklist for a guild
func (d *Database) SaveBlacklist(guildID string, blacklist models.Blacklist) error {
	blacklist.GuildID = guildID

	data, err := json.Marshal(blacklist)
	if err != nil {
		return fmt.Errorf("failed to encode blacklist: %v", err)
	}

	_, err = d.db.Exec(`
		INSERT INTO blacklists (guild_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		guildID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save blacklist: %v", err)
	}
	return nil
}

// Webhook persistence methods

// GetWebhook returns stored webhook credentials for a channel, or nil
func (d *Database) GetWebhook(channelID, guildID string) (*models.WebhookCredentials, error) {
	var creds models.WebhookCredentials
	err := d.db.QueryRow(`
		SELECT channel_id, guild_id, webhook_id, webhook_token, updated_at
		FROM webhooks WHERE channel_id = ? AND guild_id = ?`,
		channelID, guildID).
		Scan(&creds.ChannelID, &creds.GuildID, &creds.WebhookID, &creds.WebhookToken, &creds.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook credentials: %v", err)
	}
	return &creds, nil
}

// SaveWebhook upserts webhook credentials for a channel
func (d *Database) SaveWebhook(creds models.WebhookCredentials) error {
	_, err := d.db.Exec(`
		INSERT INTO webhooks (channel_id, guild_id, webhook_id, webhook_token, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(channel_id, guild_id) DO UPDATE SET
			webhook_id = excluded.webhook_id,
			webhook_token = excluded.webhook_token,
			updated_at = excluded.updated_at`,
		creds.ChannelID, creds.GuildID, creds.WebhookID, creds.WebhookToken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save webhook credentials: %v", err)
	}
	return nil
}

// DeleteWebhook removes stored webhook credentials for a channel
func (d *Database) DeleteWebhook(channelID, guildID string) error {
	_, err := d.db.Exec("DELETE FROM webhooks WHERE channel_id = ? AND guild_id = ?", channelID, guildID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook credentials: %v", err)
	}
	return nil
}

// Switch history methods

// RecordSwitch appends a switch entry to a user's history
func (d *Database) RecordSwitch(userID, alterName string) error {
	_, err := d.db.Exec("INSERT INTO switches (user_id, alter_name, created_at) VALUES (?, ?, ?)",
		userID, alterName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record switch: %v", err)
	}
	return nil
}

// RecentSwitches returns a user's most recent switches, newest first
func (d *Database) RecentSwitches(userID string, limit int) ([]models.SwitchRecord, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, alter_name, created_at
		FROM switches WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query switches: %v", err)
	}
	defer rows.Close()

	var switches []models.SwitchRecord
	for rows.Next() {
		var record models.SwitchRecord
		if err := rows.Scan(&record.ID, &record.UserID, &record.AlterName, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan switch: %v", err)
		}
		switches = append(switches, record)
	}

	return switches, rows.Err()
}
