package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/resilience"
)

// Fetcher downloads the catalog CSV feed and keeps a copy on disk. A cached
// copy younger than MaxAge is used as is; an older one is still used when the
// download fails.
type Fetcher struct {
	client *http.Client
	fs     afero.Fs
	cfg    config.CatalogConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewFetcher creates a Fetcher writing its cache to fs.
func NewFetcher(client *http.Client, fs afero.Fs, cfg config.CatalogConfig) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client: client,
		fs:     fs,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "catalog-fetcher"),
	}
}

// CachePath is where the downloaded CSV is stored.
func (f *Fetcher) CachePath() string {
	return filepath.Join(f.cfg.CacheDir, f.cfg.CacheFile)
}

// Load returns the decoded catalog, downloading it first if the cache is
// missing or stale.
func (f *Fetcher) Load(ctx context.Context) ([]Book, error) {
	path := f.CachePath()
	fresh, cached := f.cacheState(path)
	if !fresh {
		if err := f.download(ctx, path); err != nil {
			if !cached {
				return nil, apperrors.Newf(apperrors.ErrCatalogUnavailable, http.StatusServiceUnavailable,
					"downloading catalog: %v", err)
			}
			f.logger.Warn("catalog download failed, using stale cache", "path", path, "error", err)
		}
	} else {
		f.logger.Debug("using cached catalog", "path", path)
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cached catalog %s: %w", path, err)
	}
	defer file.Close()
	books, err := Decode(file)
	if err != nil {
		return nil, err
	}
	f.logger.Info("catalog loaded", "path", path, "books", len(books))
	return books, nil
}

// cacheState reports whether the cache file exists and whether it is
// recent enough to skip the download.
func (f *Fetcher) cacheState(path string) (fresh, exists bool) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return false, false
	}
	if f.cfg.MaxAge <= 0 {
		return false, true
	}
	return f.now().Sub(info.ModTime()) < f.cfg.MaxAge, true
}

func (f *Fetcher) download(ctx context.Context, path string) error {
	retryCfg := resilience.RetryConfig{MaxAttempts: f.cfg.RetryAttempts}
	return resilience.Retry(ctx, "catalog-download", retryCfg, func() error {
		return resilience.WithTimeout(ctx, f.cfg.DownloadTimeout, "catalog-download", func(ctx context.Context) error {
			return f.downloadOnce(ctx, path)
		})
	})
}

func (f *Fetcher) downloadOnce(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating catalog request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting catalog: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("catalog download returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return resilience.Permanent(err)
		}
		return err
	}

	if err := f.fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating catalog cache directory: %w", err)
	}
	tmp := path + ".part"
	out, err := f.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("writing catalog cache: %w", err)
	}
	if err := f.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing catalog cache: %w", err)
	}
	f.logger.Info("catalog downloaded", "url", f.cfg.URL, "bytes", written)
	return nil
}
