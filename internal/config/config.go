package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/MrJamesThe3rd/segmenter/internal/cluster"
	"github.com/MrJamesThe3rd/segmenter/internal/clv"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Segmenter"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"segmenter"`
	}

	Server struct {
		Timeout        time.Duration `envconfig:"SERVER_TIMEOUT" default:"120s"`
		MaxUploadMB    int64         `envconfig:"SERVER_MAX_UPLOAD_MB" default:"64"`
		AllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}

	Auth struct {
		// JWTSecret enables the bearer-token guard when set.
		JWTSecret string `envconfig:"AUTH_JWT_SECRET"`
		Issuer    string `envconfig:"AUTH_JWT_ISSUER"`
	}

	Source struct {
		DSN   string `envconfig:"SOURCE_DSN"`
		Table string `envconfig:"SOURCE_TABLE" default:"transactions"`
	}

	Pipeline struct {
		Strict bool `envconfig:"PIPELINE_STRICT" default:"false"`
	}

	CLV struct {
		HorizonMonths int     `envconfig:"CLV_HORIZON_MONTHS" default:"6"`
		DaysPerMonth  float64 `envconfig:"CLV_DAYS_PER_MONTH" default:"30"`
		DiscountRate  float64 `envconfig:"CLV_DISCOUNT_RATE" default:"0"`
		MinCustomers  int     `envconfig:"CLV_MIN_CUSTOMERS" default:"3"`
		MaxIterations int     `envconfig:"CLV_MAX_ITERATIONS" default:"10000"`
		Penalizer     float64 `envconfig:"CLV_PENALIZER" default:"0"`
	}

	Cluster struct {
		KMin            int     `envconfig:"CLUSTER_K_MIN" default:"2"`
		KMax            int     `envconfig:"CLUSTER_K_MAX" default:"8"`
		Seed            uint64  `envconfig:"CLUSTER_SEED" default:"42"`
		Restarts        int     `envconfig:"CLUSTER_RESTARTS" default:"10"`
		MaxIter         int     `envconfig:"CLUSTER_MAX_ITER" default:"300"`
		Linkage         string  `envconfig:"CLUSTER_LINKAGE" default:"ward"`
		ComponentPolicy string  `envconfig:"CLUSTER_COMPONENT_POLICY" default:"same-as-kmeans"`
		Tolerance       float64 `envconfig:"CLUSTER_TOLERANCE" default:"0.001"`
		Workers         int     `envconfig:"CLUSTER_WORKERS" default:"0"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func (c *Config) CLVConfig() clv.Config {
	return clv.Config{
		HorizonMonths: c.CLV.HorizonMonths,
		DaysPerMonth:  c.CLV.DaysPerMonth,
		DiscountRate:  c.CLV.DiscountRate,
		MinCustomers:  c.CLV.MinCustomers,
		MaxIterations: c.CLV.MaxIterations,
		Penalizer:     c.CLV.Penalizer,
	}
}

func (c *Config) ClusterConfig() cluster.Config {
	return cluster.Config{
		KRange:          cluster.KRange{Min: c.Cluster.KMin, Max: c.Cluster.KMax},
		Seed:            c.Cluster.Seed,
		Restarts:        c.Cluster.Restarts,
		MaxIter:         c.Cluster.MaxIter,
		Linkage:         cluster.Linkage(c.Cluster.Linkage),
		ComponentPolicy: cluster.ComponentPolicy(c.Cluster.ComponentPolicy),
		Tolerance:       c.Cluster.Tolerance,
		Workers:         c.Cluster.Workers,
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
