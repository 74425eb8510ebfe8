package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/wrnotes/internal/export"
)

// JobStatus represents the state of an export job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusFetching  JobStatus = "fetching"
	StatusRendering JobStatus = "rendering"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks the state of a single book export.
type Job struct {
	mu sync.Mutex

	ID     string        `json:"job_id"`
	BookID string        `json:"book_id"`
	Format export.Format `json:"format"`
	// Style keeps only highlights of this colour when set.
	Style *int `json:"style,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	doc    *export.Document
	errors []string
}

// Progress reports what the export gathered.
type Progress struct {
	Highlights int      `json:"highlights"`
	Notes      int      `json:"notes"`
	Bytes      int      `json:"bytes"`
	Errors     []string `json:"errors"`
}

// NewJob creates a queued export job with a fresh id.
func NewJob(bookID string, format export.Format, style *int) *Job {
	now := time.Now()
	return &Job{
		ID:        generateULID(),
		BookID:    bookID,
		Format:    format,
		Style:     style,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs, and the documents they hold, once idle past the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.lastUpdate()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) lastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetCounts records how many annotations the export covers.
func (j *Job) SetCounts(highlights, notes int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Highlights = highlights
	j.Progress.Notes = notes
	j.UpdatedAt = time.Now()
}

// SetResult stores the rendered document.
func (j *Job) SetResult(doc *export.Document) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.doc = doc
	j.Progress.Bytes = len(doc.Body)
	j.ContentHash = ContentHashHex(doc.Body)
	j.UpdatedAt = time.Now()
}

// Result returns the rendered document, or nil until the job completes.
func (j *Job) Result() *export.Document {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.doc
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string        `json:"job_id"`
	BookID      string        `json:"book_id"`
	Format      export.Format `json:"format"`
	Status      JobStatus     `json:"status"`
	Phase       string        `json:"phase"`
	Filename    string        `json:"filename,omitempty"`
	ContentHash string        `json:"content_hash,omitempty"`
	Progress    Progress      `json:"progress"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := JobSnapshot{
		ID:          j.ID,
		BookID:      j.BookID,
		Format:      j.Format,
		Status:      j.Status,
		Phase:       j.Phase,
		ContentHash: j.ContentHash,
		Progress: Progress{
			Highlights: j.Progress.Highlights,
			Notes:      j.Progress.Notes,
			Bytes:      j.Progress.Bytes,
			Errors:     append([]string{}, j.Progress.Errors...),
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.doc != nil {
		snap.Filename = j.doc.Filename
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
