package config

import (
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server      Server      `yaml:"server"`
	Storage     Storage     `yaml:"storage"`
	Recognition Recognition `yaml:"recognition"`
}

type Server struct {
	FQDN          string `yaml:"fqdn"`
	Listen        string `yaml:"listen"`
	JWTSecret     string `yaml:"jwtSecret"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	LocalStore    string `yaml:"localStorePath"`
	MediaDir      string `yaml:"mediaDir"`
	RemoteAPI     string `yaml:"remoteApiUrl"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	LogMode       string `yaml:"logMode"` // dev, prod
}

type Storage struct {
	Bucket          string `yaml:"bucket"`
	SignedURLSecs   int    `yaml:"signedUrlSecs"`
	CredentialsFile string `yaml:"credentialsFile"`
}

type Recognition struct {
	TokenURL     string `yaml:"tokenUrl"`
	RecognizeURL string `yaml:"recognizeUrl"`
	APIKey       string `yaml:"apiKey"`
	SecretKey    string `yaml:"secretKey"`
	Model        string `yaml:"model"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}
	if config.Storage.SignedURLSecs <= 0 {
		config.Storage.SignedURLSecs = 600
	}
	if config.Server.MediaDir == "" {
		config.Server.MediaDir = "media"
	}

	return config, nil
}
