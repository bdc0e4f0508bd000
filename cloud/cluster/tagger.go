package cluster

import (
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Member is a cluster member as a backend sees it: raw, undecoded tags.
type Member struct {
	Name string
	Addr net.IP
	Tags map[string]string
}

// tagger owns the local node's tags. Writes that wouldn't change anything
// never reach the backend, since every write re-triggers member updates on
// every other node.
type tagger struct {
	mu      sync.Mutex
	backend Backend
	tags    map[string]string
}

func newTagger(backend Backend, initial map[string]string) (*tagger, error) {
	t := &tagger{backend: backend, tags: copyTags(initial)}
	if err := backend.SetTags(copyTags(t.tags)); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *tagger) get() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyTags(t.tags)
}

func (t *tagger) set(key, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setLocked(key, value)
}

func (t *tagger) setLocked(key, value string) error {
	if current, ok := t.tags[key]; ok && current == value {
		return nil
	} else if !ok && value == "" {
		return nil
	}
	tags := copyTags(t.tags)
	if value == "" {
		delete(tags, key)
	} else {
		tags[key] = value
	}
	if err := t.backend.SetTags(copyTags(tags)); err != nil {
		return err
	}
	log.WithFields(log.Fields{"tag": key, "value": value}).Debug("Published tag")
	t.tags = tags
	return nil
}

func (t *tagger) addToList(key string, items []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := append(ParseList(t.tags[key]), items...)
	return t.setLocked(key, FormatList(list))
}

func (t *tagger) removeFromList(key string, items []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	drop := map[string]bool{}
	for _, item := range items {
		drop[item] = true
	}
	var kept []string
	for _, item := range ParseList(t.tags[key]) {
		if !drop[item] {
			kept = append(kept, item)
		}
	}
	return t.setLocked(key, FormatList(kept))
}

func copyTags(tags map[string]string) map[string]string {
	c := make(map[string]string, len(tags))
	for k, v := range tags {
		c[k] = v
	}
	return c
}
