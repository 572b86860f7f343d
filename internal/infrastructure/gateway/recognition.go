package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/leaflog/leaflog/internal/config"
	"github.com/leaflog/leaflog/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	// refresh when the cached token is this close to expiring
	tokenRefreshWindow = 5 * time.Minute
	// floor applied against a malformed short expiry from the provider
	tokenMinLifetime = time.Hour
)

// careTipKeywords select encyclopedia sentences worth surfacing as
// care tips.
var careTipKeywords = []string{
	"water", "light", "soil", "temperature", "humidity", "shade",
	"浇水", "光照", "土壤", "温度", "湿度", "耐阴",
}

// RecognitionGateway talks to the plant identification API: an OAuth
// client-credentials token exchange followed by a form POST of base64
// image data.
type RecognitionGateway struct {
	client *http.Client
	base   config.Recognition
	log    *zap.SugaredLogger

	mu          sync.Mutex
	conf        config.Recognition
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

func NewRecognitionGateway(conf config.Recognition, log *zap.SugaredLogger) *RecognitionGateway {
	return &RecognitionGateway{
		client: &http.Client{Timeout: defaultTimeout},
		base:   conf,
		conf:   conf,
		log:    log,
		now:    time.Now,
	}
}

// ApplySettings layers user-provided credentials over the configured
// ones. A credential change drops the cached token.
func (g *RecognitionGateway) ApplySettings(s domain.Settings) {
	next := g.base
	if s.AIAPIKey != "" {
		next.APIKey = s.AIAPIKey
	}
	if s.AISecretKey != "" {
		next.SecretKey = s.AISecretKey
	}
	if s.AIBackend != "" {
		next.Model = s.AIBackend
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if next == g.conf {
		return
	}
	g.conf = next
	g.token = ""
	g.tokenExpiry = time.Time{}
}

// Recognize identifies the species on an image. Token failures and
// recognition failures stay distinguishable so the caller can decide
// between re-auth and surfacing a content error.
func (g *RecognitionGateway) Recognize(ctx context.Context, image []byte) (*domain.AIResult, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, domain.TokenError{Err: err}
	}

	g.mu.Lock()
	conf := g.conf
	g.mu.Unlock()

	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(image))
	form.Set("baike_num", "1")

	endpoint := conf.RecognizeURL + "?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, domain.RecognitionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, domain.RecognitionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.RecognitionError{Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	var vendor struct {
		ErrorCode int    `json:"error_code"`
		ErrorMsg  string `json:"error_msg"`
		Result    []struct {
			Name      string  `json:"name"`
			Score     float64 `json:"score"`
			BaikeInfo struct {
				Description string `json:"description"`
			} `json:"baike_info"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&vendor); err != nil {
		return nil, domain.RecognitionError{Err: errors.Wrap(err, "decode response")}
	}
	if vendor.ErrorCode != 0 {
		return nil, domain.RecognitionError{Err: fmt.Errorf("provider error %d: %s", vendor.ErrorCode, vendor.ErrorMsg)}
	}
	if len(vendor.Result) == 0 {
		return nil, domain.RecognitionError{Err: fmt.Errorf("empty result")}
	}

	best := vendor.Result[0]
	return &domain.AIResult{
		Name:     best.Name,
		Score:    best.Score,
		CareTips: MineCareTips(best.BaikeInfo.Description),
		Model:    conf.Model,
	}, nil
}

// accessToken returns the cached token, refreshing it when absent or
// within the refresh window of expiry.
func (g *RecognitionGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && g.now().Add(tokenRefreshWindow).Before(g.tokenExpiry) {
		return g.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", g.conf.APIKey)
	form.Set("client_secret", g.conf.SecretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.conf.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decode token response")
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}

	lifetime := time.Duration(body.ExpiresIn) * time.Second
	if lifetime < tokenMinLifetime {
		lifetime = tokenMinLifetime
	}

	g.token = body.AccessToken
	g.tokenExpiry = g.now().Add(lifetime)
	return g.token, nil
}

// MineCareTips pulls the encyclopedia sentences mentioning care
// vocabulary out of a description.
func MineCareTips(description string) string {
	if description == "" {
		return ""
	}

	var tips []string
	for _, sentence := range splitSentences(description) {
		lower := strings.ToLower(sentence)
		for _, kw := range careTipKeywords {
			if strings.Contains(lower, kw) {
				tips = append(tips, sentence)
				break
			}
		}
	}
	return strings.Join(tips, " ")
}

func splitSentences(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '.', '!', '?', '。', '！', '？', ';', '；', '\n':
			return true
		}
		return false
	})
	out := fields[:0]
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
