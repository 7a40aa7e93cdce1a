package storage

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tailorcv/internal/errors"
)

// PostgresStore keeps records in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects with dsn, verifies the connection and applies the
// schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "storage.dsn is required for postgres", nil)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid postgres dsn", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, storageFailed("create postgres pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storageFailed("ping postgres", err)
	}

	schema, err := schemaFS.ReadFile("schema/postgres.sql")
	if err != nil {
		pool.Close()
		return nil, storageFailed("read postgres schema", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		pool.Close()
		return nil, storageFailed("apply postgres schema", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p *Profile) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, name, markdown, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, markdown = EXCLUDED.markdown, updated_at = EXCLUDED.updated_at`,
		p.ID, p.Name, p.Markdown, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return storageFailed("save profile", err)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*Profile, error) {
	if !validID(id) {
		return nil, notFound("profile", id)
	}
	var p Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, name, markdown, created_at, updated_at FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Markdown, &p.CreatedAt, &p.UpdatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("profile", id)
	}
	if err != nil {
		return nil, storageFailed("load profile", err)
	}
	return &p, nil
}

func (s *PostgresStore) LatestProfile(ctx context.Context) (*Profile, error) {
	var p Profile
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, name, markdown, created_at, updated_at FROM profiles ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&p.ID, &p.Name, &p.Markdown, &p.CreatedAt, &p.UpdatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("profile", "latest")
	}
	if err != nil {
		return nil, storageFailed("load profile", err)
	}
	return &p, nil
}

func (s *PostgresStore) SaveJob(ctx context.Context, j *JobDescription) error {
	if j.ID == "" {
		j.ID = newID()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_descriptions (id, title, company, url, text, keywords, required_skills, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, company = EXCLUDED.company, url = EXCLUDED.url,
		   text = EXCLUDED.text, keywords = EXCLUDED.keywords, required_skills = EXCLUDED.required_skills`,
		j.ID, j.Title, j.Company, j.URL, j.Text, encodeTerms(j.Keywords), encodeTerms(j.RequiredSkills), j.CreatedAt)
	if err != nil {
		return storageFailed("save job description", err)
	}
	return nil
}

const pgJobColumns = `id::text, title, company, url, text, keywords::text, required_skills::text, created_at`

func scanPgJob(row pgx.Row) (*JobDescription, error) {
	var j JobDescription
	var keywords, skills string
	if err := row.Scan(&j.ID, &j.Title, &j.Company, &j.URL, &j.Text, &keywords, &skills, &j.CreatedAt); err != nil {
		return nil, err
	}
	j.Keywords, j.RequiredSkills = decodeTerms(keywords), decodeTerms(skills)
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*JobDescription, error) {
	if !validID(id) {
		return nil, notFound("job", id)
	}
	j, err := scanPgJob(s.pool.QueryRow(ctx, `SELECT `+pgJobColumns+` FROM job_descriptions WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("job", id)
	}
	if err != nil {
		return nil, storageFailed("load job description", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, limit int) ([]JobDescription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgJobColumns+` FROM job_descriptions ORDER BY created_at DESC LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, storageFailed("list job descriptions", err)
	}
	defer rows.Close()

	var jobs []JobDescription
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, storageFailed("list job descriptions", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFailed("list job descriptions", err)
	}
	return jobs, nil
}

func (s *PostgresStore) CreateResume(ctx context.Context, r *Resume) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	var jobID *string
	if r.JobID != "" {
		jobID = &r.JobID
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resumes (id, profile_id, job_id, template, created_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.ProfileID, jobID, r.Template, r.CreatedAt)
	if err != nil {
		return storageFailed("create resume", err)
	}
	return nil
}

const pgResumeColumns = `id::text, profile_id::text, job_id::text, template, created_at`

func scanPgResume(row pgx.Row) (*Resume, error) {
	var r Resume
	var jobID *string
	if err := row.Scan(&r.ID, &r.ProfileID, &jobID, &r.Template, &r.CreatedAt); err != nil {
		return nil, err
	}
	if jobID != nil {
		r.JobID = *jobID
	}
	return &r, nil
}

func (s *PostgresStore) GetResume(ctx context.Context, id string) (*Resume, error) {
	if !validID(id) {
		return nil, notFound("resume", id)
	}
	r, err := scanPgResume(s.pool.QueryRow(ctx, `SELECT `+pgResumeColumns+` FROM resumes WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("resume", id)
	}
	if err != nil {
		return nil, storageFailed("load resume", err)
	}
	return r, nil
}

func (s *PostgresStore) ListResumes(ctx context.Context, limit int) ([]Resume, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgResumeColumns+` FROM resumes ORDER BY created_at DESC LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, storageFailed("list resumes", err)
	}
	defer rows.Close()

	var out []Resume
	for rows.Next() {
		r, err := scanPgResume(rows)
		if err != nil {
			return nil, storageFailed("list resumes", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFailed("list resumes", err)
	}
	return out, nil
}

// AddVersion numbers the version inside a transaction holding a row lock
// on the parent résumé, so concurrent writers get consecutive numbers.
func (s *PostgresStore) AddVersion(ctx context.Context, v *ResumeVersion) error {
	if !validID(v.ResumeID) {
		return notFound("resume", v.ResumeID)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageFailed("add resume version", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id::text FROM resumes WHERE id = $1 FOR UPDATE`, v.ResumeID).Scan(&locked)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return notFound("resume", v.ResumeID)
	}
	if err != nil {
		return storageFailed("add resume version", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO resume_versions (resume_id, version, markdown, template, format, score, grade, report, created_at)
		 SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, $4, $5, $6, $7::jsonb, $8 FROM resume_versions WHERE resume_id = $1
		 RETURNING version`,
		v.ResumeID, v.Markdown, v.Template, v.Format, v.Score, v.Grade, reportJSON(v.Report), v.CreatedAt,
	).Scan(&v.Version)
	if err != nil {
		return storageFailed("add resume version", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageFailed("add resume version", err)
	}
	return nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, resumeID string) ([]ResumeVersion, error) {
	if _, err := s.GetResume(ctx, resumeID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT resume_id::text, version, markdown, template, format, score, grade, report::text, created_at
		 FROM resume_versions WHERE resume_id = $1 ORDER BY version`, resumeID)
	if err != nil {
		return nil, storageFailed("list resume versions", err)
	}
	defer rows.Close()

	var out []ResumeVersion
	for rows.Next() {
		var v ResumeVersion
		var report string
		if err := rows.Scan(&v.ResumeID, &v.Version, &v.Markdown, &v.Template, &v.Format, &v.Score, &v.Grade, &report, &v.CreatedAt); err != nil {
			return nil, storageFailed("list resume versions", err)
		}
		v.Report = []byte(report)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFailed("list resume versions", err)
	}
	return out, nil
}

var _ Store = (*PostgresStore)(nil)
