package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"advisor-chat/internal/domain"
)

// requester is the subset of Client the reporter needs.
type requester interface {
	Request(ctx context.Context, method, path string, body any) (json.RawMessage, error)
}

// EnrollmentReporter forwards quiz outcomes to the enrollment service with
// PUT /enrollments/{id}/progress.
type EnrollmentReporter struct {
	client requester
}

func NewEnrollmentReporter(client requester) *EnrollmentReporter {
	return &EnrollmentReporter{client: client}
}

func (r *EnrollmentReporter) ReportProgress(ctx context.Context, report domain.ProgressReport) error {
	if report.EnrollmentID == "" {
		return fmt.Errorf("report progress: missing enrollment id")
	}
	path := "/enrollments/" + url.PathEscape(report.EnrollmentID) + "/progress"
	if _, err := r.client.Request(ctx, http.MethodPut, path, report); err != nil {
		return fmt.Errorf("report progress: %w", err)
	}
	return nil
}
