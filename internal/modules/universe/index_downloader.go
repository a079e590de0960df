package universe

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Broad-based NSE index pages that publish constituent CSVs
var defaultIndexPaths = []string{
	"/indices/equity/broad-based-indices/NIFTY--50",
	"/indices/equity/broad-based-indices/nifty-100",
	"/indices/equity/broad-based-indices/nifty200",
	"/indices/equity/broad-based-indices/nifty500",
	"/indices/equity/broad-based-indices/nifty-india-fpi-150",
	"/indices/equity/broad-based-indices/nifty-largemidcap-250",
	"/indices/equity/broad-based-indices/nifty-microcap-250",
	"/indices/equity/broad-based-indices/NiftyMidcap100",
	"/indices/equity/broad-based-indices/niftymidcap150",
	"/indices/equity/broad-based-indices/niftymidcap50",
	"/indices/equity/broad-based-indices/nifty-midcap-select-index",
	"/indices/equity/broad-based-indices/niftymidsmallcap400",
	"/indices/equity/broad-based-indices/nifty-next-50",
	"/indices/equity/broad-based-indices/niftySmallcap100",
	"/indices/equity/broad-based-indices/niftysmallcap250",
	"/indices/equity/broad-based-indices/niftysmallcap50",
	"/indices/equity/broad-based-indices/nifty-total-market",
	"/indices/equity/broad-based-indices/nifty500-large-midsmall-equal-cap-weighted",
	"/indices/equity/broad-based-indices/nifty500-multicap-50-25-25-index",
}

const defaultIndexBaseURL = "https://www.niftyindices.com"

// constituentLinkText is the anchor text on each index page that points at
// the downloadable constituent CSV.
const constituentLinkText = "Index Constituent"

// IndexDownloader scrapes index pages for their constituent CSV links and
// downloads the files into a local directory.
type IndexDownloader struct {
	client     *http.Client
	baseURL    string
	indexPaths []string
	outDir     string
	log        zerolog.Logger
}

// NewIndexDownloader creates a downloader for the default NSE index set
func NewIndexDownloader(outDir string, log zerolog.Logger) *IndexDownloader {
	return NewIndexDownloaderWithBaseURL(defaultIndexBaseURL, defaultIndexPaths, outDir, log)
}

// NewIndexDownloaderWithBaseURL creates a downloader against a specific site.
// Used by tests to point the downloader at a local fixture server.
func NewIndexDownloaderWithBaseURL(baseURL string, indexPaths []string, outDir string, log zerolog.Logger) *IndexDownloader {
	return &IndexDownloader{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:    baseURL,
		indexPaths: indexPaths,
		outDir:     outDir,
		log:        log.With().Str("service", "index_downloader").Logger(),
	}
}

// DownloadAll fetches every index's constituent CSV concurrently. Failures
// are independent: one index failing never stops the others. Returns the
// number of files successfully downloaded.
func (d *IndexDownloader) DownloadAll() (int, error) {
	if err := os.MkdirAll(d.outDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create CSV directory: %w", err)
	}

	results := make([]bool, len(d.indexPaths))

	var g errgroup.Group
	g.SetLimit(10)

	for i, path := range d.indexPaths {
		i, path := i, path
		g.Go(func() error {
			if err := d.downloadIndex(path); err != nil {
				// Absorb the failure so sibling downloads keep running
				d.log.Warn().Err(err).Str("index", path).Msg("Index download failed")
				return nil
			}
			results[i] = true
			return nil
		})
	}

	_ = g.Wait()

	downloaded := 0
	for _, ok := range results {
		if ok {
			downloaded++
		}
	}

	d.log.Info().
		Int("indexes", len(d.indexPaths)).
		Int("downloaded", downloaded).
		Msg("Index constituent download complete")

	return downloaded, nil
}

// downloadIndex scrapes one index page and downloads its constituent CSV
func (d *IndexDownloader) downloadIndex(indexPath string) error {
	csvURL, err := d.findConstituentLink(d.baseURL + indexPath)
	if err != nil {
		return err
	}

	return d.downloadFile(csvURL)
}

// findConstituentLink locates the constituent CSV link on an index page
func (d *IndexDownloader) findConstituentLink(pageURL string) (string, error) {
	body, err := d.get(pageURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse index page: %w", err)
	}

	var href string
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Text()) != constituentLinkText {
			return true
		}
		href, _ = sel.Attr("href")
		return false
	})

	if href == "" {
		return "", fmt.Errorf("no constituent link on %s", pageURL)
	}

	return d.resolveLink(href), nil
}

// resolveLink rehosts a scraped CSV link onto the configured base URL.
// Index pages publish absolute links to the production site; rewriting them
// keeps downloads on the same host the page came from.
func (d *IndexDownloader) resolveLink(href string) string {
	if !strings.Contains(href, "://") {
		return d.baseURL + "/" + strings.TrimPrefix(href, "/")
	}

	parts := strings.SplitN(href, "://", 2)
	if idx := strings.Index(parts[1], "/"); idx >= 0 {
		return d.baseURL + parts[1][idx:]
	}
	return d.baseURL
}

// downloadFile streams a CSV to disk, named after the last URL segment
func (d *IndexDownloader) downloadFile(fileURL string) error {
	body, err := d.get(fileURL)
	if err != nil {
		return err
	}
	defer body.Close()

	segments := strings.Split(fileURL, "/")
	filename := segments[len(segments)-1]
	if filename == "" {
		return fmt.Errorf("no filename in URL %s", fileURL)
	}

	out, err := os.Create(filepath.Join(d.outDir, filename))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}

	d.log.Debug().Str("file", filename).Msg("Downloaded constituent CSV")
	return nil
}

// get performs a GET with browser-like headers and returns the body
func (d *IndexDownloader) get(rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s returned status %d", rawURL, resp.StatusCode)
	}

	return resp.Body, nil
}
