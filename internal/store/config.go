package store

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	BackendCloudinary = "cloudinary"
	BackendS3         = "s3"
)

type Config struct {
	Backend string `mapstructure:"Backend"`

	// Cloudinary backend.
	CloudName string `mapstructure:"CloudName"`
	APIKey    string `mapstructure:"APIKey"`
	APISecret string `mapstructure:"APISecret"`

	// S3-compatible backend.
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Bucket          string `mapstructure:"Bucket"`
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	PublicBaseURL   string `mapstructure:"PublicBaseURL"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.BindEnv("Backend", "STORE_BACKEND")
	v.BindEnv("CloudName", "CLOUDINARY_CLOUD_NAME")
	v.BindEnv("APIKey", "CLOUDINARY_API_KEY")
	v.BindEnv("APISecret", "CLOUDINARY_API_SECRET")
	v.BindEnv("AccessKeyID", "S3_ACCESS_KEY_ID")
	v.BindEnv("SecretAccessKey", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("Bucket", "S3_BUCKET")
	v.BindEnv("Endpoint", "S3_ENDPOINT")
	v.BindEnv("Region", "S3_REGION")
	v.BindEnv("PublicBaseURL", "S3_PUBLIC_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal store config: %w", err)
	}

	// Dotenv keys do not match the mapstructure names, read them directly.
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = v.GetString(key)
		}
	}
	fill(&cfg.Backend, "STORE_BACKEND")
	fill(&cfg.CloudName, "CLOUDINARY_CLOUD_NAME")
	fill(&cfg.APIKey, "CLOUDINARY_API_KEY")
	fill(&cfg.APISecret, "CLOUDINARY_API_SECRET")
	fill(&cfg.AccessKeyID, "S3_ACCESS_KEY_ID")
	fill(&cfg.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	fill(&cfg.Bucket, "S3_BUCKET")
	fill(&cfg.Endpoint, "S3_ENDPOINT")
	fill(&cfg.Region, "S3_REGION")
	fill(&cfg.PublicBaseURL, "S3_PUBLIC_BASE_URL")

	if cfg.Backend == "" {
		cfg.Backend = BackendCloudinary
	}

	switch cfg.Backend {
	case BackendCloudinary:
		if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
			return nil, fmt.Errorf("cloudinary configuration is incomplete: CloudName, APIKey and APISecret are required")
		}
	case BackendS3:
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 configuration is incomplete: AccessKeyID, SecretAccessKey and Bucket are required")
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	return &cfg, nil
}
