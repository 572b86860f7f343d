package domain

// Config is the server-side runtime configuration handed to services
// and handlers.
type Config struct {
	FQDN      string `yaml:"fqdn"`
	JWTSecret string `yaml:"jwtSecret"`
}

// Context keys for requester identity, set by the auth middleware.
const (
	RequesterIDCtxKey       = "ll-requesterId"
	RequesterNicknameCtxKey = "ll-requesterNickname"
)
