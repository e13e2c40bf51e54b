package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
	"golang.org/x/sync/errgroup"

	"github.com/rmacedo-dev/ans-despesas/etl/models"
	"github.com/rmacedo-dev/ans-despesas/etl/utils"
)

// PeriodFile is the outcome of fetching one reporting period. A failed
// fetch carries its error here instead of aborting the other periods.
type PeriodFile struct {
	Periodo models.Periodo
	Path    string
	Err     error
}

// Downloader fetches disclosure files and the registry snapshot from the
// open-data archive, keeping a snappy-compressed local cache so reruns
// skip the network unless forced.
type Downloader struct {
	baseURL     string
	dataDir     string
	concurrency int
	client      *http.Client
	logger      *utils.ETLLogger

	// now is swappable in tests
	now func() time.Time
}

func NewDownloader(baseURL, dataDir string, concurrency int, logger *utils.ETLLogger) *Downloader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Downloader{
		baseURL:     baseURL,
		dataDir:     dataDir,
		concurrency: concurrency,
		client:      &http.Client{Timeout: 2 * time.Minute},
		logger:      logger,
		now:         time.Now,
	}
}

// LastQuarters returns the n most recent closed reporting periods, newest
// first. Disclosures lag publication by two quarters, so counting starts
// there rather than at the current quarter.
func (d *Downloader) LastQuarters(n int) []models.Periodo {
	t := d.now()
	ano := t.Year()
	trimestre := (int(t.Month())-1)/3 + 1

	// step back two quarters for the publication lag
	for i := 0; i < 2; i++ {
		trimestre--
		if trimestre == 0 {
			trimestre = 4
			ano--
		}
	}

	periods := make([]models.Periodo, 0, n)
	for i := 0; i < n; i++ {
		periods = append(periods, models.Periodo{Ano: ano, Trimestre: trimestre})
		trimestre--
		if trimestre == 0 {
			trimestre = 4
			ano--
		}
	}
	return periods
}

// FetchPeriods downloads the disclosure file of every requested period,
// bounded by the configured concurrency. Each period is attempted
// independently: one period failing shows up in its PeriodFile.Err and the
// rest are unaffected. The returned slice preserves the input order.
func (d *Downloader) FetchPeriods(ctx context.Context, periods []models.Periodo, force bool) []PeriodFile {
	results := make([]PeriodFile, len(periods))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, p := range periods {
		i, p := i, p
		g.Go(func() error {
			path, err := d.fetchPeriod(ctx, p, force)
			mu.Lock()
			results[i] = PeriodFile{Periodo: p, Path: path, Err: err}
			mu.Unlock()
			if err != nil {
				d.logger.Error("Fetch failed for %s: %v", p, err)
			}
			// fetch errors are collected, not propagated, so the
			// group never cancels sibling downloads
			return nil
		})
	}

	g.Wait()
	return results
}

// FetchRegistry downloads the active-operator registry snapshot and
// returns the local cache path.
func (d *Downloader) FetchRegistry(ctx context.Context, force bool) (string, error) {
	url := fmt.Sprintf("%s/operadoras_de_plano_de_saude_ativas/Relatorio_cadop.csv", d.baseURL)
	cachePath := filepath.Join(d.dataDir, "operadoras.csv.sz")
	return d.fetchToCache(ctx, url, cachePath, force)
}

func (d *Downloader) fetchPeriod(ctx context.Context, p models.Periodo, force bool) (string, error) {
	url := fmt.Sprintf("%s/demonstracoes_contabeis/%d/%dT%d.csv", d.baseURL, p.Ano, p.Trimestre, p.Ano)
	cachePath := filepath.Join(d.dataDir, fmt.Sprintf("despesas_%dT%d.csv.sz", p.Trimestre, p.Ano))
	return d.fetchToCache(ctx, url, cachePath, force)
}

func (d *Downloader) fetchToCache(ctx context.Context, url, cachePath string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(cachePath); err == nil {
			d.logger.Debug("Cache hit, skipping download: %s", cachePath)
			return cachePath, nil
		}
	}

	if err := os.MkdirAll(d.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}

	d.logger.Info("Downloading %s", url)
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %d", url, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response for %s: %w", url, err)
	}

	// write compressed to a temp file first so an aborted download never
	// leaves a truncated cache entry behind
	compressed := snappy.Encode(nil, raw)
	tmp := cachePath + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return "", fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("committing cache file: %w", err)
	}

	d.logger.Info("Cached %s (%d bytes raw, %d compressed)", cachePath, len(raw), len(compressed))
	return cachePath, nil
}

// Open decompresses a cached source file for reading.
func Open(path string) (io.Reader, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cache file %s: %w", path, err)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompressing cache file %s: %w", path, err)
	}
	return bytes.NewReader(raw), nil
}
