package service

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/metrics"
	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/qerrors"
	"github.com/quarry-io/quarry/internal/resilience"
)

// HTTPDownloader fetches file references over HTTP with retries. When a
// reference carries a checksum, the downloaded bytes are verified against it
// and a mismatch counts as a failed download.
type HTTPDownloader struct {
	client  *http.Client
	retryer *resilience.Retryer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHTTPDownloader creates a downloader with its own HTTP client.
func NewHTTPDownloader(timeout time.Duration, retryer *resilience.Retryer, m *metrics.Metrics, logger *zap.Logger) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPDownloader{
		client:  &http.Client{Timeout: timeout},
		retryer: retryer,
		metrics: m,
		logger:  logger,
	}
}

// Fetch downloads one file reference to destPath. The file is written to a
// temporary sibling first and renamed into place only after the checksum
// passes, so a failed download never leaves a partial file behind.
func (d *HTTPDownloader) Fetch(ctx context.Context, ref model.FileReference, destPath string) error {
	op := "download.Fetch"

	err := d.retryer.Do(ctx, op, func(ctx context.Context) error {
		return d.fetchOnce(ctx, ref, destPath)
	})
	if err != nil {
		if d.metrics != nil {
			d.metrics.DownloadsTotal.WithLabelValues("failure").Inc()
		}
		return err
	}

	if d.metrics != nil {
		d.metrics.DownloadsTotal.WithLabelValues("success").Inc()
		d.metrics.DownloadedBytes.Add(float64(ref.Size))
	}
	return nil
}

func (d *HTTPDownloader) fetchOnce(ctx context.Context, ref model.FileReference, destPath string) error {
	op := "download.fetchOnce"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return qerrors.Wrapf(op, qerrors.KindInvalid, err, "bad download URL %q", ref.URL)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return qerrors.Wrapf(op, qerrors.KindTransient, err, "download request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return qerrors.New(op, qerrors.KindTransient, "server returned %d for %s", resp.StatusCode, ref.Name)
	}
	if resp.StatusCode != http.StatusOK {
		return qerrors.New(op, qerrors.KindRejected, "server returned %d for %s", resp.StatusCode, ref.Name)
	}

	tmpPath := destPath + ".partial"
	out, err := os.Create(tmpPath)
	if err != nil {
		return qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot create download target")
	}

	hasher := crc32.NewIEEE()
	_, err = io.Copy(io.MultiWriter(out, hasher), resp.Body)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return qerrors.Wrapf(op, qerrors.KindTransient, err, "download interrupted")
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return qerrors.Wrapf(op, qerrors.KindInternal, closeErr, "cannot finalize download target")
	}

	if ref.Checksum != "" {
		got := fmt.Sprintf("%08x", hasher.Sum32())
		if got != ref.Checksum {
			os.Remove(tmpPath)
			return qerrors.New(op, qerrors.KindInvalid,
				"checksum mismatch for %s: expected %s, got %s", ref.Name, ref.Checksum, got)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot move download into place")
	}

	d.logger.Debug("downloaded file reference",
		zap.String("name", ref.Name),
		zap.String("dest", destPath))
	return nil
}
