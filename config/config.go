/*
Copyright 2025 Vestcore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"VEST_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"VEST_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"VEST_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"VEST_QUEUE_WEBHOOK"`
	AccrualQueue   string `json:"accrual_queue" envconfig:"VEST_QUEUE_ACCRUAL"`
	MonitoringPort string `json:"monitoring_port" envconfig:"VEST_QUEUE_MONITORING_PORT"`
}

// AccrualConfig drives the daily interest and maturity job: the hour it
// fires, the timezone the calendar day is evaluated in, and the batch
// size used when scanning active investments.
type AccrualConfig struct {
	Hour      int    `json:"hour" envconfig:"VEST_ACCRUAL_HOUR"`
	Timezone  string `json:"timezone" envconfig:"VEST_ACCRUAL_TIMEZONE"`
	BatchSize int    `json:"batch_size" envconfig:"VEST_ACCRUAL_BATCH_SIZE"`
}

type OtpConfig struct {
	TTLMinutes int `json:"ttl_minutes" envconfig:"VEST_OTP_TTL_MINUTES"`
	Length     int `json:"length" envconfig:"VEST_OTP_LENGTH"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"VEST_PROJECT_NAME"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Accrual      AccrualConfig    `json:"accrual"`
	Otp          OtpConfig        `json:"otp"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("vest", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called vest.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Vest Ledger"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.AccrualQueue == "" {
		cnf.Queue.AccrualQueue = "new:accrual"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5003"
	}

	if cnf.Accrual.Timezone == "" {
		cnf.Accrual.Timezone = "UTC"
	}
	if cnf.Accrual.Hour < 0 || cnf.Accrual.Hour > 23 {
		log.Printf("Warning: accrual hour %d out of range. Using midnight.", cnf.Accrual.Hour)
		cnf.Accrual.Hour = 0
	}
	if cnf.Accrual.BatchSize <= 0 {
		cnf.Accrual.BatchSize = 500
	}

	if cnf.Otp.TTLMinutes <= 0 {
		cnf.Otp.TTLMinutes = 10
	}
	if cnf.Otp.Length <= 0 {
		cnf.Otp.Length = 6
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
