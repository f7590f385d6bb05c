package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is the persistence contract the service relies on. *Repository
// implements it.
type Store interface {
	Upsert(ctx context.Context, id, name, email string) error
	Get(ctx context.Context, id string) (Student, error)
	Exists(ctx context.Context, id string) (bool, error)
	MarkPresent(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context) ([]Student, error)
}

// Issuer renders the QR code pointing at a student's page.
type Issuer interface {
	Issue(baseURL, id string) (string, error)
}

// maxAllocAttempts bounds retries when a generated id is already taken.
const maxAllocAttempts = 5

// RegisterRequest is the input of Register. An empty ID asks for a generated one.
type RegisterRequest struct {
	ID    string
	Name  string
	Email string
}

// Registration is the outcome of a successful Register.
type Registration struct {
	ID        string
	QRDataURL string
}

// Service coordinates registration and the attendance gate.
type Service struct {
	store Store
	ids   *IDAllocator
	qr    Issuer
	now   func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, ids *IDAllocator, qr Issuer) *Service {
	if ids == nil {
		ids = NewIDAllocator()
	}
	return &Service{store: store, ids: ids, qr: qr, now: time.Now}
}

// Register stores the student (replacing any previous record with the same
// id) and returns its QR code. Nothing is stored when the code cannot be issued.
func (s *Service) Register(ctx context.Context, req RegisterRequest, baseURL string) (Registration, error) {
	id, err := s.allocate(ctx, req.ID)
	if err != nil {
		return Registration{}, err
	}
	dataURL, err := s.qr.Issue(baseURL, id)
	if err != nil {
		return Registration{}, err
	}
	if err := s.store.Upsert(ctx, id, req.Name, req.Email); err != nil {
		return Registration{}, err
	}
	return Registration{ID: id, QRDataURL: dataURL}, nil
}

func (s *Service) allocate(ctx context.Context, supplied string) (string, error) {
	if supplied != "" {
		return supplied, nil
	}
	for i := 0; i < maxAllocAttempts; i++ {
		id := s.ids.Allocate("")
		taken, err := s.store.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("allocate id: %d generated ids already taken", maxAllocAttempts)
}

// Student returns one student.
func (s *Service) Student(ctx context.Context, id string) (Student, error) {
	return s.store.Get(ctx, id)
}

// Students returns every student in insertion order.
func (s *Service) Students(ctx context.Context) ([]Student, error) {
	return s.store.List(ctx)
}

// Mark records attendance for id. It fails with ErrNotFound for unknown ids
// and ErrAlreadyMarked when the student is already present; the stored
// timestamp is never overwritten.
func (s *Service) Mark(ctx context.Context, id string) (time.Time, error) {
	at := s.now().UTC().Truncate(time.Millisecond)
	if err := s.store.MarkPresent(ctx, id, at); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyMarked) {
			return time.Time{}, err
		}
		return time.Time{}, fmt.Errorf("mark attendance: %w", err)
	}
	return at, nil
}
