package config

import (
	"log"
	"sync"
	"time"

	"github.com/Astemirdum/lending-service/pkg/circuit_breaker"
	"github.com/Astemirdum/lending-service/pkg/kafka"
	"github.com/Astemirdum/lending-service/pkg/logger"
	"github.com/Astemirdum/lending-service/pkg/mongodb"
	"github.com/Astemirdum/lending-service/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LIBRARY_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"LIBRARY_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE" default:"10s"`
}

type Storage struct {
	Driver   string         `yaml:"driver" envconfig:"STORAGE_DRIVER" default:"postgres"`
	Postgres postgres.DB    `yaml:"postgres"`
	Mongo    mongodb.Config `yaml:"mongo"`
}

type Auth struct {
	JWTSecret  string        `yaml:"jwtSecret" envconfig:"JWT_SECRET" required:"true"`
	TokenTTL   time.Duration `yaml:"tokenTTL" envconfig:"JWT_TTL" default:"1h"`
	BcryptCost int           `yaml:"bcryptCost" envconfig:"BCRYPT_COST" default:"10"`
}

type Reservation struct {
	// upper bound for every single store call made while reserving or returning
	OpTimeout     time.Duration `yaml:"opTimeout" envconfig:"STORE_OP_TIMEOUT" default:"5s"`
	// extra insert attempts while the book flag is held and a losing reserve still owns the open row
	InsertRetries int           `yaml:"insertRetries" envconfig:"RESERVE_INSERT_RETRIES" default:"5"`
	InsertBackoff time.Duration `yaml:"insertBackoff" envconfig:"RESERVE_INSERT_BACKOFF" default:"20ms"`
}

type Config struct {
	Server         HTTPServer             `yaml:"server"`
	Storage        Storage                `yaml:"storage"`
	Auth           Auth                   `yaml:"auth"`
	Reservation    Reservation            `yaml:"reservation"`
	Kafka          kafka.Config           `yaml:"kafka"`
	CircuitBreaker circuit_breaker.Config `yaml:"circuitBreaker"`
	Log            logger.Log             `yaml:"log"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		// options win over the environment
		for _, op := range ops {
			op(&config)
		}
		cfg = &config
	})

	return cfg
}
