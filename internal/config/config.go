package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"Server"`
	Gallery GalleryConfig `mapstructure:"Gallery"`
	Search  SearchConfig  `mapstructure:"Search"`
}

type ServerConfig struct {
	Port    string `mapstructure:"Port"`
	BaseURL string `mapstructure:"BaseURL"`
}

type GalleryConfig struct {
	// Folder is the prefix every asset lives under in the remote store.
	Folder string `mapstructure:"Folder"`
}

type SearchConfig struct {
	// ServiceURL is the base URL of the CLIP sidecar.
	ServiceURL string `mapstructure:"ServiceURL"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Server.BaseURL", "BASE_URL")
	v.BindEnv("Gallery.Folder", "GALLERY_FOLDER")
	v.BindEnv("Search.ServiceURL", "CLIP_API_URL")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = v.GetString("HTTP_PORT")
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = v.GetString("BASE_URL")
	}
	if cfg.Gallery.Folder == "" {
		cfg.Gallery.Folder = v.GetString("GALLERY_FOLDER")
	}
	if cfg.Search.ServiceURL == "" {
		cfg.Search.ServiceURL = v.GetString("CLIP_API_URL")
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "2525"
	}
	if cfg.Gallery.Folder == "" {
		cfg.Gallery.Folder = "Upload_ETEC"
	}
	if cfg.Search.ServiceURL == "" {
		cfg.Search.ServiceURL = "http://127.0.0.1:5000"
	}

	return &cfg, nil
}
