package repository

const (
	saveOutcomeQuery = `INSERT INTO export_history (job_id, job_key, quality, state, error_kind, error_message, width, height, size_bytes, created_at, started_at, finished_at)
					VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11, $12)
					ON CONFLICT (job_id) DO NOTHING`
)
