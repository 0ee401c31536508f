//go:build integration

package nats

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"advisor-chat/internal/domain"
	"github.com/nats-io/nats.go"
)

func TestIntegration_ReportProgress(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}

	sub, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()

	received := make(chan map[string]any, 1)
	if _, err := sub.Subscribe("advisor.test.progress", func(msg *nats.Msg) {
		var event map[string]any
		if json.Unmarshal(msg.Data, &event) == nil {
			received <- event
		}
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_ = sub.Flush()

	pub, err := Connect(url, "advisor.test.progress", nil)
	if err != nil {
		t.Fatalf("connect publisher: %v", err)
	}
	defer pub.Close()

	if err := pub.ReportProgress(context.Background(), domain.ProgressReport{EnrollmentID: "enr-1", Score: 90}); err != nil {
		t.Fatalf("report: %v", err)
	}

	select {
	case event := <-received:
		if event["enrollmentId"] != "enr-1" {
			t.Fatalf("unexpected event %v", event)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}
