package state

const schema = `
CREATE TABLE IF NOT EXISTS aircraft_history (
	icao24 TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	latitude REAL,
	longitude REAL,
	altitude REAL,
	velocity REAL,
	on_ground INTEGER NOT NULL DEFAULT 0,
	vertical_rate REAL,
	callsign TEXT,
	heading REAL,
	squawk TEXT,
	last_contact INTEGER,
	UNIQUE(icao24, timestamp)
);

CREATE INDEX IF NOT EXISTS idx_history_icao_time
	ON aircraft_history(icao24, timestamp DESC);

CREATE TABLE IF NOT EXISTS anomaly_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	icao24 TEXT,
	anomaly_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	details TEXT,
	acknowledged INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_anomaly_time
	ON anomaly_log(timestamp DESC);
`
