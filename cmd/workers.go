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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vestcore/vest"
	"github.com/vestcore/vest/config"
	redis_db "github.com/vestcore/vest/internal/redis-db"
	"github.com/vestcore/vest/internal/traces"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.WebhookQueue] = 3
	// accrual runs are serialized: one nightly batch at a time
	queues[cfg.Queue.AccrualQueue] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(v *vestInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(cfg.Queue.WebhookQueue, vest.ProcessWebhook)
	mux.HandleFunc(cfg.Queue.AccrualQueue, v.vest.ProcessAccrualTask)
}

// initializeAccrualScheduler registers the nightly accrual run. The task
// carries a zero timestamp, which the handler resolves to the current day
// in the configured timezone.
func initializeAccrualScheduler(conf *config.Configuration) (*asynq.Scheduler, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	loc, err := time.LoadLocation(conf.Accrual.Timezone)
	if err != nil {
		loc = time.UTC
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		&asynq.SchedulerOpts{Location: loc},
	)

	payload, err := json.Marshal(time.Time{})
	if err != nil {
		return nil, err
	}

	cronSpec := fmt.Sprintf("0 %d * * *", conf.Accrual.Hour)
	task := asynq.NewTask(conf.Queue.AccrualQueue, payload, asynq.Queue(conf.Queue.AccrualQueue), asynq.MaxRetry(3))
	if _, err := scheduler.Register(cronSpec, task); err != nil {
		return nil, fmt.Errorf("error registering accrual schedule: %v", err)
	}
	return scheduler, nil
}

// workerCommands defines the "workers" command. Workers consume the
// webhook and accrual queues, and the embedded scheduler enqueues the
// nightly accrual run.
func workerCommands(v *vestInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start vest workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			shutdownTracer, err := traces.SetupOTelSDK(context.Background(), conf.ProjectName)
			if err != nil {
				log.Fatalf("could not start tracer: %v", err)
			}
			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					log.Printf("error shutting down tracer: %v", err)
				}
			}()

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(v, mux)

			scheduler, err := initializeAccrualScheduler(conf)
			if err != nil {
				log.Fatal(err)
			}
			if err := scheduler.Start(); err != nil {
				log.Fatalf("could not start scheduler: %v", err)
			}
			defer scheduler.Shutdown()

			// asynqmon for queue health and monitoring
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
