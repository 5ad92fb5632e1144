package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRemoteCall(t *testing.T) {
	remoteCallsTotal.Reset()
	remoteCallDuration.Reset()

	RecordRemoteCall("upload", nil, 2*time.Second)
	RecordRemoteCall("upload", errors.New("boom"), time.Second)
	RecordRemoteCall("upload", nil, time.Second)

	if got := testutil.ToFloat64(remoteCallsTotal.WithLabelValues("upload", StatusSuccess)); got != 2 {
		t.Errorf("expected 2 successful calls, got %f", got)
	}
	if got := testutil.ToFloat64(remoteCallsTotal.WithLabelValues("upload", StatusError)); got != 1 {
		t.Errorf("expected 1 failed call, got %f", got)
	}
	if count := testutil.CollectAndCount(remoteCallDuration); count == 0 {
		t.Error("expected duration observations")
	}
}

func TestRecordRetry(t *testing.T) {
	retriesTotal.Reset()

	RecordRetry("list models")
	RecordRetry("list models")

	if got := testutil.ToFloat64(retriesTotal.WithLabelValues("list models")); got != 2 {
		t.Errorf("expected 2 retries, got %f", got)
	}
}

func TestJobLifecycle(t *testing.T) {
	jobsActive.Set(0)
	jobsTotal.Reset()

	JobStarted()
	JobStarted()
	if got := testutil.ToFloat64(jobsActive); got != 2 {
		t.Errorf("expected 2 active jobs, got %f", got)
	}

	JobFinished(StatusSuccess, 3*time.Second)
	JobFinished(StatusError, time.Second)

	if got := testutil.ToFloat64(jobsActive); got != 0 {
		t.Errorf("expected 0 active jobs, got %f", got)
	}
	if got := testutil.ToFloat64(jobsTotal.WithLabelValues(StatusError)); got != 1 {
		t.Errorf("expected 1 failed job, got %f", got)
	}
}

func TestRecordUploadIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(uploadBytesTotal)
	RecordUpload(0)
	RecordUpload(-5)
	RecordUpload(1024)
	if got := testutil.ToFloat64(uploadBytesTotal) - before; got != 1024 {
		t.Errorf("expected 1024 bytes added, got %f", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	compressionAttemptsTotal.Reset()
	RecordCompressionAttempt("fit")

	path := filepath.Join(t.TempDir(), "video_analyzer.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `video_analyzer_compression_attempts_total{outcome="fit"} 1`) {
		t.Errorf("textfile missing compression counter:\n%s", data)
	}
}

func TestRecordKeyValidation(t *testing.T) {
	keyValidationsTotal.Reset()

	RecordKeyValidation("success")
	RecordKeyValidation("invalid")
	RecordKeyValidation("invalid")

	if got := testutil.ToFloat64(keyValidationsTotal.WithLabelValues("invalid")); got != 2 {
		t.Errorf("expected 2 invalid results, got %f", got)
	}
}
