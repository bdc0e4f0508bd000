package cluster

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Fetcher returns a full list of visible nodes.
type Fetcher interface {
	Fetch() ([]Node, error)
}

type fetchCron struct {
	ticker *time.Ticker
	f      Fetcher
	outCh  chan []Node
	closer chan struct{}
}

func makeFetchCron(f Fetcher, t time.Duration) *fetchCron {
	c := &fetchCron{
		ticker: time.NewTicker(t),
		f:      f,
		outCh:  make(chan []Node),
		closer: make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *fetchCron) loop() {
	defer close(c.outCh)
	for {
		select {
		case <-c.ticker.C:
			nodes, err := c.f.Fetch()
			if err != nil {
				log.Errorf("Couldn't fetch cluster members: %v", err)
				continue
			}
			select {
			case c.outCh <- nodes:
			case <-c.closer:
				return
			}
		case <-c.closer:
			return
		}
	}
}

func (c *fetchCron) close() {
	c.ticker.Stop()
	close(c.closer)
}
