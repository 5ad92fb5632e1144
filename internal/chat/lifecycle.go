package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-video-analyzer/internal/retry"
)

var (
	// ErrAssetFailed means the service reported the upload as unprocessable.
	ErrAssetFailed = errors.New("remote file processing failed")
	// ErrAssetTimeout means the file never became active within the poll budget.
	ErrAssetTimeout = errors.New("timed out waiting for remote file processing")
)

// AssetError reports why an uploaded asset cannot be used. Err is
// ErrAssetFailed or ErrAssetTimeout; Cause holds the last poll error, if any.
type AssetError struct {
	Name  string
	State AssetState
	Polls int
	Err   error
	Cause error
}

func (e *AssetError) Error() string {
	msg := fmt.Sprintf("file %s: %v (state %s after %d polls)", e.Name, e.Err, e.State, e.Polls)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AssetError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// errStillProcessing keeps the poll loop going while the file is pending.
var errStillProcessing = errors.New("file still processing")

// Tracker waits for uploaded assets to become usable.
type Tracker struct {
	Service Service
	Policy  retry.Policy
}

// NewTracker returns a Tracker polling svc under retry.FilePollPolicy.
func NewTracker(svc Service) *Tracker {
	return &Tracker{Service: svc, Policy: retry.FilePollPolicy}
}

// WaitActive polls the asset's state until it is ACTIVE, FAILED, or the poll
// budget runs out. A poll that errors counts as still pending. It returns
// true only for ACTIVE; false always comes with an *AssetError, or the
// context's error on cancellation. asset.State is updated in place.
func (t *Tracker) WaitActive(ctx context.Context, asset *Asset) (bool, error) {
	p := t.Policy
	if p.MaxAttempts <= 0 {
		p = retry.FilePollPolicy
	}

	start := time.Now()
	polls := 0
	var lastPollErr error

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		polls++
		current, err := t.Service.GetFile(ctx, asset.Name)
		if err != nil {
			lastPollErr = err
			log.Debug().Err(err).Str("file", asset.Name).Int("poll", polls).Msg("File state query failed, will poll again")
			return struct{}{}, err
		}
		lastPollErr = nil
		asset.State = current.State
		if current.URI != "" {
			asset.URI = current.URI
		}

		switch current.State {
		case AssetActive:
			return struct{}{}, nil
		case AssetFailed:
			return struct{}{}, backoff.Permanent(ErrAssetFailed)
		default:
			log.Debug().
				Str("file", asset.Name).
				Str("state", string(current.State)).
				Int("poll", polls).
				Msg("Video still processing, waiting...")
			return struct{}{}, errStillProcessing
		}
	},
		backoff.WithBackOff(p.NewBackOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)

	if err == nil {
		log.Info().
			Str("name", asset.Name).
			Str("state", string(asset.State)).
			Dur("total_time", time.Since(start)).
			Int("poll_iterations", polls).
			Msg("Video ready for inference")
		return true, nil
	}

	if ctxErr := context.Cause(ctx); ctxErr != nil && errors.Is(err, ctxErr) {
		return false, err
	}

	assetErr := &AssetError{Name: asset.Name, State: asset.State, Polls: polls, Err: ErrAssetTimeout, Cause: lastPollErr}
	if errors.Is(err, ErrAssetFailed) {
		assetErr.Err = ErrAssetFailed
		assetErr.Cause = nil
	}
	log.Error().
		Err(assetErr).
		Dur("total_time", time.Since(start)).
		Msg("Uploaded file is not usable")
	return false, assetErr
}
