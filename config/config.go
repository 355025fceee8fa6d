package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Rides    RidesConfig    `yaml:"rides"`
	Requests RequestsConfig `yaml:"requests"`
	Chat     ChatConfig     `yaml:"chat"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address"`
	SwaggerDir      string        `yaml:"swagger_dir"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	// URL takes precedence over the discrete fields when set.
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	Migrate  bool   `yaml:"migrate"`
	// InMemory replaces PostgreSQL with the process-local store. Data does
	// not survive a restart; meant for local runs and demos.
	InMemory bool   `yaml:"in_memory"`
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	RideEventsTopic    string   `yaml:"ride_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type RidesConfig struct {
	MaxSeats        int           `yaml:"max_seats"`
	DepartureGrace  time.Duration `yaml:"departure_grace"`
	SearchCacheTTL  time.Duration `yaml:"search_cache_ttl"`
	ProfileCacheTTL time.Duration `yaml:"profile_cache_ttl"`
}

type RequestsConfig struct {
	// AllowWaitlist lets riders submit pending requests against a full ride.
	AllowWaitlist bool `yaml:"allow_waitlist"`
	PageSize      int  `yaml:"page_size"`
}

type ChatConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxLength    int           `yaml:"max_length"`
}

type WorkerConfig struct {
	ExpirationSweep time.Duration `yaml:"expiration_sweep"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used for every field the file leaves
// empty.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		GRPC:     GRPCConfig{Address: ":9090"},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, SSLMode: "disable"},
		Kafka: KafkaConfig{
			RideEventsTopic:    "rides.events",
			NotificationsTopic: "rides.notifications",
			GroupID:            "rideshare-worker",
		},
		Rides: RidesConfig{
			MaxSeats:        8,
			DepartureGrace:  5 * time.Minute,
			SearchCacheTTL:  30 * time.Second,
			ProfileCacheTTL: 10 * time.Minute,
		},
		Requests: RequestsConfig{PageSize: 50},
		Chat:     ChatConfig{PollInterval: 5 * time.Second, MaxLength: 1000},
		Worker:   WorkerConfig{ExpirationSweep: time.Minute},
		Log:      LogConfig{Level: "info"},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		c.Database.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitAndTrim(v)
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http.address is required"))
	}
	if c.GRPC.Address == "" {
		errs = append(errs, errors.New("grpc.address is required"))
	}
	if !c.Database.InMemory && c.Database.URL == "" && c.Database.Name == "" {
		errs = append(errs, errors.New("database.url or database.name is required"))
	}
	if c.Rides.MaxSeats < 1 {
		errs = append(errs, errors.New("rides.max_seats must be > 0"))
	}
	if c.Rides.DepartureGrace < 0 {
		errs = append(errs, errors.New("rides.departure_grace must not be negative"))
	}
	if c.Requests.PageSize < 1 {
		errs = append(errs, errors.New("requests.page_size must be > 0"))
	}
	if c.Chat.PollInterval <= 0 {
		errs = append(errs, errors.New("chat.poll_interval must be > 0"))
	}
	if c.Chat.MaxLength < 1 {
		errs = append(errs, errors.New("chat.max_length must be > 0"))
	}
	if c.Worker.ExpirationSweep <= 0 {
		errs = append(errs, errors.New("worker.expiration_sweep must be > 0"))
	}
	return errors.Join(errs...)
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
