// Package processor turns a fetched recipe page into a stored recipe record.
package processor

import (
	"context"
	stderrors "errors"
	"net/url"

	"ketohub/internal/errors"
	"ketohub/internal/logger"
	"ketohub/internal/recipekey"
	"ketohub/internal/sites"
	"ketohub/internal/storage"
)

// State is a point in the lifecycle of a processed page.
type State string

const (
	StateStart        State = "START"
	StateKeyDerived   State = "KEY_DERIVED"
	StateImageLocated State = "IMAGE_LOCATED"
	StateImageFetched State = "IMAGE_FETCHED"
	StatePersisted    State = "PERSISTED"
	StateFailed       State = "FAILED"
)

// Failure kinds reported for pages that did not produce a complete record.
const (
	KindNoImage   = "no_image"
	KindDownload  = "download"
	KindImageType = "image_type"
	KindStorage   = "storage"
	KindFetch     = "fetch"
	KindOther     = "other"
)

// Store persists the parts of a recipe record.
type Store interface {
	SaveMetadata(key recipekey.Key, md *storage.Metadata) (*storage.FileInfo, error)
	SaveHTML(key recipekey.Key, body []byte) (*storage.FileInfo, error)
	SaveImage(key recipekey.Key, data []byte) (*storage.FileInfo, error)
}

// ImageFetcher downloads an image and returns its bytes.
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// Input is a fetched page as delivered by the crawl engine.
type Input struct {
	URL     string
	Body    []byte
	Referer string
	// Page may carry an already parsed document for Body.
	Page *sites.Page
}

// Result describes what happened to one page.
type Result struct {
	Key      recipekey.Key
	State    State
	ImageURL string
	Files    []*storage.FileInfo
}

// Processor runs the per-page pipeline for one site.
type Processor struct {
	strategy sites.Strategy
	store    Store
	fetcher  ImageFetcher
	logger   *logger.Logger
}

// New creates a Processor that locates images with strategy.
func New(strategy sites.Strategy, store Store, fetcher ImageFetcher, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{
		strategy: strategy,
		store:    store,
		fetcher:  fetcher,
		logger:   log,
	}
}

// Process derives the recipe key, writes metadata and html, then locates,
// downloads and writes the main image. A page whose image cannot be found or
// downloaded keeps its metadata and html. The returned Result is never nil.
func (p *Processor) Process(ctx context.Context, in Input) (*Result, error) {
	res := &Result{State: StateStart}

	if err := ctx.Err(); err != nil {
		return p.fail(res, in, "start", errors.Wrap(err, errors.CrawlerError, "crawl cancelled"))
	}

	res.Key = recipekey.FromURL(in.URL)
	res.State = StateKeyDerived

	md := storage.NewMetadata().Set("url", in.URL)
	if in.Referer != "" {
		md.Set("referer", in.Referer)
	}
	if err := p.save(res, func() (*storage.FileInfo, error) { return p.store.SaveMetadata(res.Key, md) }); err != nil {
		return p.fail(res, in, "save_metadata", err)
	}
	if err := p.save(res, func() (*storage.FileInfo, error) { return p.store.SaveHTML(res.Key, in.Body) }); err != nil {
		return p.fail(res, in, "save_html", err)
	}

	page := in.Page
	if page == nil {
		var err error
		if page, err = sites.NewPage(in.URL, in.Body); err != nil {
			return p.fail(res, in, "parse_page", errors.Wrap(err, errors.ExtractionError, "failed to parse page"))
		}
	}

	src, err := p.strategy(page)
	if err != nil {
		return p.fail(res, in, "locate_image", errors.Wrap(err, errors.ExtractionError, "failed to locate main image"))
	}
	imageURL, err := resolve(in.URL, src)
	if err != nil {
		return p.fail(res, in, "locate_image", errors.Wrap(err, errors.ExtractionError, "invalid image url"))
	}
	res.ImageURL = imageURL
	res.State = StateImageLocated

	data, err := p.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return p.fail(res, in, "fetch_image", errors.Wrap(err, errors.NetworkError, "failed to download main image").
			WithContext("image_url", imageURL))
	}
	res.State = StateImageFetched

	if err := p.save(res, func() (*storage.FileInfo, error) { return p.store.SaveImage(res.Key, data) }); err != nil {
		return p.fail(res, in, "save_image", err)
	}
	res.State = StatePersisted

	p.logger.Info("Saved recipe", map[string]interface{}{
		"url":       in.URL,
		"key":       string(res.Key),
		"image_url": imageURL,
	})
	return res, nil
}

func (p *Processor) save(res *Result, write func() (*storage.FileInfo, error)) *errors.KetohubError {
	info, err := write()
	if err != nil {
		return errors.Wrap(err, errors.StorageError, "failed to persist recipe record")
	}
	res.Files = append(res.Files, info)
	return nil
}

func (p *Processor) fail(res *Result, in Input, stage string, err *errors.KetohubError) (*Result, error) {
	err.WithContext("url", in.URL).WithContext("stage", stage)
	if res.Key != "" {
		err.WithContext("key", string(res.Key))
	}
	res.State = StateFailed

	p.logger.Warn("Failed to process recipe page", map[string]interface{}{
		"url":   in.URL,
		"key":   string(res.Key),
		"stage": stage,
		"kind":  FailureKind(err),
		"error": err,
	})
	return res, err
}

func resolve(pageURL, src string) (string, error) {
	ref, err := url.Parse(src)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// FailureKind classifies a processing error for the crawl summary.
func FailureKind(err error) string {
	var (
		noImage   *errors.NoImageFoundError
		download  *errors.ImageDownloadError
		imageType *errors.UnexpectedImageTypeError
	)
	switch {
	case err == nil:
		return ""
	case stderrors.As(err, &noImage):
		return KindNoImage
	case stderrors.As(err, &imageType):
		return KindImageType
	case stderrors.As(err, &download):
		return KindDownload
	case errors.IsStorageError(err):
		return KindStorage
	case errors.IsNetworkError(err):
		return KindDownload
	default:
		return KindOther
	}
}
