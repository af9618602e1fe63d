package postgres

// SQL queries for the definition journal, bucket rows and leader lock.

const (
	// queryRecordDefinition journals one issued definition. Re-issuing the
	// same statement with the same outcome is recorded once.
	queryRecordDefinition = `
		INSERT INTO rollup_definitions (
			run_id, name, role, namespace, statement, statement_hash, status, error, issued_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name, statement_hash, status) DO NOTHING
	`

	queryRecentDefinitions = `
		SELECT
			run_id, name, role, namespace, statement, statement_hash, status, error, issued_at
		FROM rollup_definitions
		ORDER BY issued_at DESC, name ASC
		LIMIT $1
	`

	// queryScanBucketRows reads one table's rows by key prefix in byte order,
	// matching the engine's key ordering.
	queryScanBucketRows = `
		SELECT row_key, payload
		FROM bucket_rows
		WHERE table_name = $1
		  AND row_key LIKE $2 ESCAPE '\'
		ORDER BY row_key COLLATE "C" ASC
	`

	queryUpsertBucketRow = `
		INSERT INTO bucket_rows (table_name, row_key, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (table_name, row_key)
		DO UPDATE SET
			payload    = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`

	queryTryAdvisoryLock = `SELECT pg_try_advisory_lock($1)`
	queryAdvisoryUnlock  = `SELECT pg_advisory_unlock($1)`

	queryTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = $1
		)
	`
)
