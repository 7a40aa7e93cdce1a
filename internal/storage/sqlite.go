package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tailorcv/internal/errors"
)

// SQLiteStore keeps everything in a single database file.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultSQLitePath is used when no path is configured.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tailorcv.db"
	}
	return filepath.Join(home, ".tailorcv", "tailorcv.db")
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeFileNotWritable,
				"failed to create database directory", err).WithContext("path", path)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, storageFailed("open sqlite database", err)
	}
	db.SetMaxOpenConns(1) // single writer

	schema, err := schemaFS.ReadFile("schema/sqlite.sql")
	if err != nil {
		db.Close()
		return nil, storageFailed("read sqlite schema", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		db.Close()
		return nil, storageFailed("apply sqlite schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p *Profile) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name, markdown, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, markdown = excluded.markdown, updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Markdown, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return storageFailed("save profile", err)
	}
	return nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, markdown, created_at, updated_at FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound("profile", id)
	}
	if err != nil {
		return nil, storageFailed("load profile", err)
	}
	return p, nil
}

func (s *SQLiteStore) LatestProfile(ctx context.Context) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, markdown, created_at, updated_at FROM profiles ORDER BY updated_at DESC LIMIT 1`)
	p, err := scanProfile(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound("profile", "latest")
	}
	if err != nil {
		return nil, storageFailed("load profile", err)
	}
	return p, nil
}

func scanProfile(row scanner) (*Profile, error) {
	var p Profile
	var created, updated string
	if err := row.Scan(&p.ID, &p.Name, &p.Markdown, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedAt, p.UpdatedAt = parseTime(created), parseTime(updated)
	return &p, nil
}

func (s *SQLiteStore) SaveJob(ctx context.Context, j *JobDescription) error {
	if j.ID == "" {
		j.ID = newID()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_descriptions (id, title, company, url, text, keywords, required_skills, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, company = excluded.company, url = excluded.url,
		   text = excluded.text, keywords = excluded.keywords, required_skills = excluded.required_skills`,
		j.ID, j.Title, j.Company, j.URL, j.Text, encodeTerms(j.Keywords), encodeTerms(j.RequiredSkills), formatTime(j.CreatedAt))
	if err != nil {
		return storageFailed("save job description", err)
	}
	return nil
}

const jobColumns = `id, title, company, url, text, keywords, required_skills, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*JobDescription, error) {
	var j JobDescription
	var keywords, skills, created string
	if err := row.Scan(&j.ID, &j.Title, &j.Company, &j.URL, &j.Text, &keywords, &skills, &created); err != nil {
		return nil, err
	}
	j.Keywords, j.RequiredSkills = decodeTerms(keywords), decodeTerms(skills)
	j.CreatedAt = parseTime(created)
	return &j, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*JobDescription, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM job_descriptions WHERE id = ?`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound("job", id)
	}
	if err != nil {
		return nil, storageFailed("load job description", err)
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, limit int) ([]JobDescription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM job_descriptions ORDER BY created_at DESC LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, storageFailed("list job descriptions", err)
	}
	defer rows.Close()

	var jobs []JobDescription
	for rows.Next() {
		j, err := scanJob(rows)
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

func (s *SQLiteStore) CreateResume(ctx context.Context, r *Resume) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	var jobID any
	if r.JobID != "" {
		jobID = r.JobID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resumes (id, profile_id, job_id, template, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.ProfileID, jobID, r.Template, formatTime(r.CreatedAt))
	if err != nil {
		return storageFailed("create resume", err)
	}
	return nil
}

func scanResume(row scanner) (*Resume, error) {
	var r Resume
	var jobID sql.NullString
	var created string
	if err := row.Scan(&r.ID, &r.ProfileID, &jobID, &r.Template, &created); err != nil {
		return nil, err
	}
	r.JobID = jobID.String
	r.CreatedAt = parseTime(created)
	return &r, nil
}

func (s *SQLiteStore) GetResume(ctx context.Context, id string) (*Resume, error) {
	r, err := scanResume(s.db.QueryRowContext(ctx,
		`SELECT id, profile_id, job_id, template, created_at FROM resumes WHERE id = ?`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound("resume", id)
	}
	if err != nil {
		return nil, storageFailed("load resume", err)
	}
	return r, nil
}

func (s *SQLiteStore) ListResumes(ctx context.Context, limit int) ([]Resume, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, profile_id, job_id, template, created_at FROM resumes ORDER BY created_at DESC LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, storageFailed("list resumes", err)
	}
	defer rows.Close()

	var out []Resume
	for rows.Next() {
		r, err := scanResume(rows)
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

func (s *SQLiteStore) AddVersion(ctx context.Context, v *ResumeVersion) error {
	if _, err := s.GetResume(ctx, v.ResumeID); err != nil {
		return err
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO resume_versions (resume_id, version, markdown, template, format, score, grade, report, created_at)
		 SELECT ?, COALESCE(MAX(version), 0) + 1, ?, ?, ?, ?, ?, ?, ? FROM resume_versions WHERE resume_id = ?
		 RETURNING version`,
		v.ResumeID, v.Markdown, v.Template, v.Format, v.Score, v.Grade, reportJSON(v.Report), formatTime(v.CreatedAt), v.ResumeID,
	).Scan(&v.Version)
	if err != nil {
		return storageFailed("add resume version", err)
	}
	return nil
}

func (s *SQLiteStore) ListVersions(ctx context.Context, resumeID string) ([]ResumeVersion, error) {
	if _, err := s.GetResume(ctx, resumeID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT resume_id, version, markdown, template, format, score, grade, report, created_at
		 FROM resume_versions WHERE resume_id = ? ORDER BY version`, resumeID)
	if err != nil {
		return nil, storageFailed("list resume versions", err)
	}
	defer rows.Close()

	var out []ResumeVersion
	for rows.Next() {
		var v ResumeVersion
		var report, created string
		if err := rows.Scan(&v.ResumeID, &v.Version, &v.Markdown, &v.Template, &v.Format, &v.Score, &v.Grade, &report, &created); err != nil {
			return nil, storageFailed("list resume versions", err)
		}
		v.Report = []byte(report)
		v.CreatedAt = parseTime(created)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFailed("list resume versions", err)
	}
	return out, nil
}

var _ Store = (*SQLiteStore)(nil)
