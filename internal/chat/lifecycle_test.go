package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fpang/gemini-video-analyzer/internal/retry"
)

func newTestTracker(svc Service, attempts int) *Tracker {
	return &Tracker{
		Service: svc,
		Policy:  retry.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}
}

func TestWaitActiveAfterPending(t *testing.T) {
	svc := &fakeService{states: []AssetState{AssetPending, AssetUnknown, AssetActive}}
	asset := &Asset{Name: "files/a"}

	ok, err := newTestTracker(svc, 10).WaitActive(context.Background(), asset)
	if !ok || err != nil {
		t.Fatalf("expected active, got ok=%v err=%v", ok, err)
	}
	if asset.State != AssetActive {
		t.Errorf("expected state updated to ACTIVE, got %s", asset.State)
	}
	if svc.gets != 3 {
		t.Errorf("expected 3 polls, got %d", svc.gets)
	}
}

func TestWaitActiveFailsFast(t *testing.T) {
	svc := &fakeService{states: []AssetState{AssetPending, AssetFailed}}

	ok, err := newTestTracker(svc, 10).WaitActive(context.Background(), &Asset{Name: "files/a"})
	if ok {
		t.Fatal("expected not ok")
	}
	if !errors.Is(err, ErrAssetFailed) {
		t.Fatalf("expected ErrAssetFailed, got %v", err)
	}
	if svc.gets != 2 {
		t.Errorf("expected polling to stop at FAILED, got %d polls", svc.gets)
	}
}

func TestWaitActiveTimeout(t *testing.T) {
	svc := &fakeService{states: []AssetState{AssetPending}}

	ok, err := newTestTracker(svc, 5).WaitActive(context.Background(), &Asset{Name: "files/a"})
	if ok {
		t.Fatal("expected not ok")
	}
	var assetErr *AssetError
	if !errors.As(err, &assetErr) {
		t.Fatalf("expected *AssetError, got %v", err)
	}
	if !errors.Is(err, ErrAssetTimeout) {
		t.Errorf("expected ErrAssetTimeout, got %v", err)
	}
	if assetErr.Polls != 5 || svc.gets != 5 {
		t.Errorf("expected 5 polls, got %d (service saw %d)", assetErr.Polls, svc.gets)
	}
	if assetErr.State != AssetPending {
		t.Errorf("expected last state PENDING, got %s", assetErr.State)
	}
}

func TestWaitActiveToleratesPollErrors(t *testing.T) {
	svc := &fakeService{getErrs: []error{errTransient, errTransient}, states: []AssetState{AssetActive}}

	ok, err := newTestTracker(svc, 10).WaitActive(context.Background(), &Asset{Name: "files/a"})
	if !ok || err != nil {
		t.Fatalf("expected active after transient poll errors, got ok=%v err=%v", ok, err)
	}
	if svc.gets != 3 {
		t.Errorf("expected 3 polls, got %d", svc.gets)
	}
}

func TestWaitActiveTimeoutKeepsLastPollError(t *testing.T) {
	svc := &fakeService{getErrs: []error{errTransient, errTransient, errTransient}}

	_, err := newTestTracker(svc, 3).WaitActive(context.Background(), &Asset{Name: "files/a"})
	if !errors.Is(err, ErrAssetTimeout) || !errors.Is(err, errTransient) {
		t.Fatalf("expected timeout wrapping the poll error, got %v", err)
	}
}

func TestWaitActiveCanceled(t *testing.T) {
	svc := &fakeService{states: []AssetState{AssetPending}}
	tracker := &Tracker{
		Service: svc,
		Policy:  retry.Policy{MaxAttempts: 100, BaseDelay: time.Hour, MaxDelay: time.Hour},
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	ok, err := tracker.WaitActive(ctx, &Asset{Name: "files/a"})
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got ok=%v err=%v", ok, err)
	}
}
