package async

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	log "github.com/sirupsen/logrus"
)

// Retry calls op with exponential backoff until it succeeds, ctx is done,
// or maxElapsed has passed. It returns op's last error.
func Retry(ctx context.Context, maxElapsed time.Duration, name string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = maxElapsed
	try := 1
	return backoff.Retry(func() error {
		err := op()
		if err != nil {
			log.WithFields(log.Fields{"op": name, "try": try, "error": err}).Info("Retrying")
		}
		try++
		return err
	}, backoff.WithContext(b, ctx))
}
