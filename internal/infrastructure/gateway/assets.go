package gateway

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/config"
	"github.com/leaflog/leaflog/internal/domain"
)

// AssetGateway stores image assets in an object bucket. Uploads are
// content-addressed and return a stable reference; reads resolve
// references to short-lived signed URLs through a positive cache. The
// reverse URL-to-reference map backs canonicalization: a display URL
// must never survive into persisted storage.
type AssetGateway struct {
	bucket    string
	signedTTL time.Duration
	client    *storage.Client
	cache     URLCache
	reverse   *gocache.Cache
	log       *zap.SugaredLogger
}

func NewAssetGateway(ctx context.Context, conf config.Storage, urlCache URLCache, log *zap.SugaredLogger) (*AssetGateway, error) {
	var opts []option.ClientOption
	if conf.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create storage client")
	}

	ttl := time.Duration(conf.SignedURLSecs) * time.Second
	return &AssetGateway{
		bucket:    conf.Bucket,
		signedTTL: ttl,
		client:    client,
		cache:     urlCache,
		reverse:   gocache.New(ttl, 2*ttl),
		log:       log,
	}, nil
}

// Upload stores a local image file and returns its stable reference.
func (g *AssetGateway) Upload(ctx context.Context, owner, localPath string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", errors.Wrap(err, "read image file")
	}
	return g.UploadBytes(ctx, owner, filepath.Base(localPath), data)
}

// UploadBytes stores image bytes under a content-addressed key and
// returns the stable reference. Uploading the same bytes twice yields
// the same reference.
func (g *AssetGateway) UploadBytes(ctx context.Context, owner, filename string, data []byte) (string, error) {
	key := "plants/" + leaflog.ContentKey(data) + strings.ToLower(filepath.Ext(filename))
	object := owner + "/" + key

	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "write object")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "close object writer")
	}

	return leaflog.ComposeAssetRef(owner, key), nil
}

// Resolve maps stable references to display URLs, cache first. Signed
// URLs cache for slightly less than their validity so a hit is never
// already expired.
func (g *AssetGateway) Resolve(ctx context.Context, refs []string) (map[string]string, error) {
	result := make(map[string]string, len(refs))

	for _, ref := range refs {
		if !leaflog.IsAssetRef(ref) {
			continue
		}
		if cached, found := g.cache.Get(ref); found {
			result[ref] = cached
			g.reverse.SetDefault(cached, ref)
			continue
		}

		owner, key, err := leaflog.ParseAssetRef(ref)
		if err != nil {
			g.log.Warnw("unresolvable reference", "ref", ref, "error", err)
			continue
		}

		signed, err := g.client.Bucket(g.bucket).SignedURL(owner+"/"+key, &storage.SignedURLOptions{
			Method:  "GET",
			Expires: time.Now().Add(g.signedTTL),
		})
		if err != nil {
			return result, errors.Wrapf(err, "sign url for %s", ref)
		}

		result[ref] = signed
		g.cache.Set(ref, signed, g.signedTTL-30*time.Second)
		g.reverse.SetDefault(signed, ref)
	}
	return result, nil
}

// CanonicalRef reverses a display URL back to its stable reference.
func (g *AssetGateway) CanonicalRef(displayURL string) (string, bool) {
	if v, found := g.reverse.Get(displayURL); found {
		return v.(string), true
	}
	return "", false
}

// Delete removes stored assets. Already-gone objects are fine.
func (g *AssetGateway) Delete(ctx context.Context, refs []string) error {
	for _, ref := range refs {
		owner, key, err := leaflog.ParseAssetRef(ref)
		if err != nil {
			continue
		}
		err = g.client.Bucket(g.bucket).Object(owner + "/" + key).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return errors.Wrapf(err, "delete %s", ref)
		}
	}
	return nil
}

// Download fetches the raw bytes of a stored asset, for recognition
// and health analysis over already-uploaded photos.
func (g *AssetGateway) Download(ctx context.Context, ref string) ([]byte, error) {
	owner, key, err := leaflog.ParseAssetRef(ref)
	if err != nil {
		return nil, err
	}
	r, err := g.client.Bucket(g.bucket).Object(owner + "/" + key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.NotFoundError{Resource: "asset"}
		}
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return ""
	}
}
