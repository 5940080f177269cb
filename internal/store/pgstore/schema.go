package pgstore

// NotifyChannel is the Postgres channel the change trigger notifies on.
const NotifyChannel = "table_changes"

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS shuttles (
		id   text PRIMARY KEY,
		time text NOT NULL,
		type text NOT NULL CHECK (type IN ('arrival', 'return'))
	)`,
	`CREATE TABLE IF NOT EXISTS registrations (
		id         text PRIMARY KEY,
		shuttle_id text NOT NULL REFERENCES shuttles(id),
		name       text NOT NULL,
		guests     integer NOT NULL DEFAULT 0,
		timestamp  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS registrations_shuttle_id_idx ON registrations (shuttle_id)`,
	`CREATE TABLE IF NOT EXISTS dj_requests (
		id           text PRIMARY KEY,
		created_at   timestamptz NOT NULL DEFAULT now(),
		song_name    text NOT NULL,
		artist       text,
		requested_by text,
		play_time    text
	)`,
	`CREATE OR REPLACE FUNCTION notify_table_change() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + NotifyChannel + `', json_build_object(
			'event', lower(TG_OP),
			'schema', TG_TABLE_SCHEMA,
			'table', TG_TABLE_NAME
		)::text);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS shuttles_notify ON shuttles`,
	`CREATE TRIGGER shuttles_notify AFTER INSERT OR UPDATE OR DELETE ON shuttles
		FOR EACH ROW EXECUTE FUNCTION notify_table_change()`,
	`DROP TRIGGER IF EXISTS registrations_notify ON registrations`,
	`CREATE TRIGGER registrations_notify AFTER INSERT OR UPDATE OR DELETE ON registrations
		FOR EACH ROW EXECUTE FUNCTION notify_table_change()`,
	`DROP TRIGGER IF EXISTS dj_requests_notify ON dj_requests`,
	`CREATE TRIGGER dj_requests_notify AFTER INSERT OR UPDATE OR DELETE ON dj_requests
		FOR EACH ROW EXECUTE FUNCTION notify_table_change()`,
}
