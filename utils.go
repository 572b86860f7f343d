package leaflog

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// AssetScheme is the scheme of stable image references. A stable
// reference stays valid indefinitely; a display URL (http/https) is
// short-lived and must never be persisted.
const AssetScheme = "asset"

// ComposeAssetRef builds a stable reference from an owner and an
// object key.
func ComposeAssetRef(owner, key string) string {
	u := &url.URL{
		Scheme: AssetScheme,
		Host:   owner,
		Path:   "/" + strings.TrimPrefix(key, "/"),
	}
	return u.String()
}

// ParseAssetRef splits a stable reference into owner and object key.
func ParseAssetRef(ref string) (string, string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid asset reference")
	}
	if u.Scheme != AssetScheme {
		return "", "", fmt.Errorf("unsupported reference scheme")
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// IsAssetRef reports whether s is a stable reference rather than a
// display URL or a bare device path.
func IsAssetRef(s string) bool {
	return strings.HasPrefix(s, AssetScheme+"://")
}

// IsDisplayURL reports whether s is a short-lived signed URL.
func IsDisplayURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ContentKey derives a content-addressed object key for image bytes.
func ContentKey(data []byte) string {
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:])
}

// NewRecordID derives a plant record id from its creation time,
// unique within one owner's list.
func NewRecordID(t time.Time) int64 {
	return t.UnixMilli()
}

// ShareKey scopes likes and comments to one shared plant.
func ShareKey(owner string, plantID int64) string {
	return fmt.Sprintf("%s#%d", owner, plantID)
}

// ParseShareKey splits an owner#plantID key.
func ParseShareKey(key string) (string, int64, error) {
	idx := strings.LastIndex(key, "#")
	if idx <= 0 || idx == len(key)-1 {
		return "", 0, fmt.Errorf("invalid share key")
	}
	var id int64
	if _, err := fmt.Sscanf(key[idx+1:], "%d", &id); err != nil {
		return "", 0, fmt.Errorf("invalid share key")
	}
	return key[:idx], id, nil
}
