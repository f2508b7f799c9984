package users

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS allowed_users (
		telegram_id TEXT PRIMARY KEY,
		phone TEXT,
		username TEXT,
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
		added_by TEXT NOT NULL,
		added_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_allowed_users_added_at ON allowed_users(added_at DESC)`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS allowed_users (
		telegram_id TEXT PRIMARY KEY,
		phone TEXT,
		username TEXT,
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
		added_by TEXT NOT NULL,
		added_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_allowed_users_added_at ON allowed_users(added_at)`,
}
