package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Janhavi187/event-attendance-system/internal/logger"
	"github.com/Janhavi187/event-attendance-system/internal/metrics"
	"github.com/Janhavi187/event-attendance-system/internal/queue"
)

// MessageType marks queue messages carrying a Job.
const MessageType = "qr"

// Job asks for the QR code of StudentID, encoding URL, to be archived.
type Job struct {
	StudentID string `json:"student_id"`
	URL       string `json:"url"`
}

// Publisher enqueues archive jobs.
type Publisher struct {
	q queue.Queue
}

func NewPublisher(q queue.Queue) *Publisher {
	return &Publisher{q: q}
}

// Enqueue publishes a Job for studentID.
func (p *Publisher) Enqueue(ctx context.Context, studentID, url string) error {
	msg, err := queue.NewMessage(MessageType, Job{StudentID: studentID, URL: url})
	if err != nil {
		return err
	}
	return p.q.Publish(ctx, msg)
}

type existence interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type renderer interface {
	PNG(content string) ([]byte, error)
}

// Worker consumes archive jobs.
type Worker struct {
	students existence
	qr       renderer
	sink     Sink
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewWorker wires a worker. m may be nil.
func NewWorker(students existence, qr renderer, sink Sink, log *logger.Logger, m *metrics.Metrics) *Worker {
	return &Worker{students: students, qr: qr, sink: sink, log: log, metrics: m}
}

// Run processes messages until the channel closes.
func (w *Worker) Run(ctx context.Context, messages <-chan queue.Message) {
	w.log.Info("archive worker started")
	for msg := range messages {
		if msg.Type != MessageType {
			continue
		}
		outcome := metrics.OutcomeOK
		if err := w.Handle(ctx, msg); err != nil {
			outcome = metrics.OutcomeError
			w.log.Error("archive qr failed", "message_id", msg.ID, "error", err)
		}
		if w.metrics != nil {
			w.metrics.Archived.WithLabelValues(outcome).Inc()
		}
	}
	w.log.Info("archive worker stopped")
}

// Handle archives a single job. Jobs for students that no longer exist are skipped.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	var job Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	if job.StudentID == "" || job.URL == "" {
		return fmt.Errorf("incomplete job %s", msg.ID)
	}

	exists, err := w.students.Exists(ctx, job.StudentID)
	if err != nil {
		return err
	}
	if !exists {
		w.log.Warn("archive job for unknown student", "student_id", job.StudentID)
		return nil
	}

	png, err := w.qr.PNG(job.URL)
	if err != nil {
		return err
	}
	location, err := w.sink.Put(ctx, job.StudentID, png)
	if err != nil {
		return err
	}
	w.log.Info("qr archived", "student_id", job.StudentID, "location", location)
	return nil
}
