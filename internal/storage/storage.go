// Package storage persists candidate profiles, job descriptions and
// generated résumé versions on SQLite or PostgreSQL.
package storage

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tailorcv/internal/errors"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Profile is the stored base résumé of the candidate.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Markdown  string    `json:"markdown"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobDescription is a posting together with what job analysis extracted.
type JobDescription struct {
	ID             string    `json:"id"`
	Title          string    `json:"title,omitempty"`
	Company        string    `json:"company,omitempty"`
	URL            string    `json:"url,omitempty"`
	Text           string    `json:"text"`
	Keywords       []string  `json:"keywords"`
	RequiredSkills []string  `json:"required_skills"`
	CreatedAt      time.Time `json:"created_at"`
}

// Resume groups the versions generated from one profile for one job.
type Resume struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	JobID     string    `json:"job_id,omitempty"`
	Template  string    `json:"template"`
	CreatedAt time.Time `json:"created_at"`
}

// ResumeVersion is an immutable snapshot of a generated résumé and its
// score. Versions are numbered from 1.
type ResumeVersion struct {
	ResumeID  string          `json:"resume_id"`
	Version   int             `json:"version"`
	Markdown  string          `json:"markdown"`
	Template  string          `json:"template"`
	Format    string          `json:"format"`
	Score     float64         `json:"score"`
	Grade     string          `json:"grade"`
	Report    json.RawMessage `json:"report,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is the persistence interface used by the workflow, CLI and server.
type Store interface {
	SaveProfile(ctx context.Context, p *Profile) error
	GetProfile(ctx context.Context, id string) (*Profile, error)
	LatestProfile(ctx context.Context) (*Profile, error)

	SaveJob(ctx context.Context, j *JobDescription) error
	GetJob(ctx context.Context, id string) (*JobDescription, error)
	ListJobs(ctx context.Context, limit int) ([]JobDescription, error)

	CreateResume(ctx context.Context, r *Resume) error
	GetResume(ctx context.Context, id string) (*Resume, error)
	ListResumes(ctx context.Context, limit int) ([]Resume, error)

	// AddVersion appends a version and sets v.Version to its number.
	AddVersion(ctx context.Context, v *ResumeVersion) error
	ListVersions(ctx context.Context, resumeID string) ([]ResumeVersion, error)

	Close() error
}

// Options selects and configures a driver.
type Options struct {
	Driver string // sqlite or postgres
	Path   string // sqlite database file
	DSN    string // postgres connection string
}

// Open connects to the configured store and applies the schema.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLite:
		return OpenSQLite(ctx, opts.Path)
	case DriverPostgres, "postgresql", "pgx":
		return OpenPostgres(ctx, opts.DSN)
	}
	return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
		fmt.Sprintf("unknown storage driver %q", opts.Driver), nil).WithContext("driver", opts.Driver)
}

const defaultListLimit = 50

func listLimit(n int) int {
	if n <= 0 || n > 1000 {
		return defaultListLimit
	}
	return n
}

func newID() string {
	return uuid.NewString()
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFound(kind, id string) error {
	return errors.NewStorageError(errors.ErrCodeNotFound,
		fmt.Sprintf("%s %s not found", kind, id), nil).WithContext(kind+"_id", id)
}

func storageFailed(op string, err error) error {
	return errors.NewStorageError(errors.ErrCodeStorageFailed,
		fmt.Sprintf("failed to %s", op), err)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.IsCode(err, errors.ErrCodeNotFound)
}

func encodeTerms(terms []string) string {
	if terms == nil {
		terms = []string{}
	}
	b, _ := json.Marshal(terms)
	return string(b)
}

func decodeTerms(s string) []string {
	var terms []string
	if err := json.Unmarshal([]byte(s), &terms); err != nil || terms == nil {
		return []string{}
	}
	return terms
}

func reportJSON(r json.RawMessage) string {
	if len(r) == 0 {
		return "{}"
	}
	return string(r)
}
