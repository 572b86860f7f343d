package domain

// Backend kinds selectable at runtime.
const (
	BackendFullRemote  = "full-remote"
	BackendLocalOnly   = "local-only"
	BackendGenericHTTP = "generic-http"
)

// Cache backends for resolved display URLs.
const (
	CacheBackendMemory    = "memory"
	CacheBackendRedis     = "redis"
	CacheBackendMemcached = "memcached"
)

// Settings is the persisted runtime configuration document. Missing
// fields are filled from DefaultSettings on read.
type Settings struct {
	Backend      string `json:"backend" yaml:"backend"`
	AIBackend    string `json:"aiBackend" yaml:"aiBackend"`
	AIAPIKey     string `json:"aiApiKey,omitempty" yaml:"aiApiKey"`
	AISecretKey  string `json:"aiSecretKey,omitempty" yaml:"aiSecretKey"`
	MaxPhotos    int    `json:"maxPhotos" yaml:"maxPhotos"`
	MaxRecords   int    `json:"maxRecords" yaml:"maxRecords"`
	MaxHistory   int    `json:"maxHistory" yaml:"maxHistory"`
	CacheBackend string `json:"cacheBackend" yaml:"cacheBackend"`
	Language     string `json:"language" yaml:"language"`
}

// DefaultSettings is the hard-coded default shape.
func DefaultSettings() Settings {
	return Settings{
		Backend:      BackendFullRemote,
		AIBackend:    "baidu",
		MaxPhotos:    9,
		MaxRecords:   50,
		MaxHistory:   50,
		CacheBackend: CacheBackendMemory,
		Language:     "en",
	}
}

// MergeDefaults fills zero-valued fields from the defaults.
func (s Settings) MergeDefaults() Settings {
	def := DefaultSettings()
	if s.Backend == "" {
		s.Backend = def.Backend
	}
	if s.AIBackend == "" {
		s.AIBackend = def.AIBackend
	}
	if s.MaxPhotos <= 0 {
		s.MaxPhotos = def.MaxPhotos
	}
	if s.MaxRecords <= 0 {
		s.MaxRecords = def.MaxRecords
	}
	if s.MaxHistory <= 0 {
		s.MaxHistory = def.MaxHistory
	}
	if s.CacheBackend == "" {
		s.CacheBackend = def.CacheBackend
	}
	if s.Language == "" {
		s.Language = def.Language
	}
	return s
}
