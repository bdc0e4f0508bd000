package syncer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"

	"github.com/ygrid/ygrid/common/stats"
	"github.com/ygrid/ygrid/os/temp"
	"github.com/ygrid/ygrid/workspace"
)

const DefaultHttpTries = 5

func MakePesterClient() *pester.Client {
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = DefaultHttpTries
	client.LogHook = func(e pester.ErrEntry) {
		log.Errorf("Retrying sync after failed attempt: %+v", e)
	}
	return client
}

type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSyncer transfers files to and from peers' sync Servers.
type HTTPSyncer struct {
	ws     *workspace.Workspace
	client Client
	stat   stats.StatsReceiver
}

func NewHTTPSyncer(ws *workspace.Workspace, stat stats.StatsReceiver) *HTTPSyncer {
	return NewCustomHTTPSyncer(ws, MakePesterClient(), stat)
}

func NewCustomHTTPSyncer(ws *workspace.Workspace, client Client, stat stats.StatsReceiver) *HTTPSyncer {
	return &HTTPSyncer{ws: ws, client: client, stat: stat.Scope("syncer")}
}

func fileURL(addr, rel string) string {
	return fmt.Sprintf("http://%s%s%s", addr, PathPrefix, filepath.ToSlash(rel))
}

func (s *HTTPSyncer) Send(ctx context.Context, addr string, files []File) error {
	for _, f := range files {
		src, err := s.ws.Resolve(f.Src)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return errors.Wrapf(err, "couldn't read %v", f.Src)
		}
		uri := fileURL(addr, f.Dst)
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uri, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.ContentLength = int64(len(data))
		req.Header.Set("Content-Type", "application/octet-stream")
		resp, err := s.client.Do(req)
		if err != nil {
			return errors.Wrapf(err, "couldn't send %v", uri)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("send %v: %s", uri, resp.Status)
		}
		log.WithFields(log.Fields{"file": f, "node": addr}).Debug("Sent file")
		s.stat.Counter(stats.SyncFilesSent).Inc(1)
	}
	return nil
}

func (s *HTTPSyncer) Fetch(ctx context.Context, addr string, files []File) error {
	for _, f := range files {
		dst, err := s.ws.Resolve(f.Dst)
		if err != nil {
			return err
		}
		uri := fileURL(addr, f.Src)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return errors.Wrapf(err, "couldn't fetch %v", uri)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return errors.Wrapf(os.ErrNotExist, "fetch %v", uri)
		}
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("fetch %v: %s", uri, resp.Status)
		}
		if err != nil {
			return errors.Wrapf(err, "couldn't read %v", uri)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := temp.WriteFile(dst, data, 0644); err != nil {
			return err
		}
		log.WithFields(log.Fields{"file": f, "node": addr}).Debug("Fetched file")
		s.stat.Counter(stats.SyncFilesFetched).Inc(1)
	}
	return nil
}
