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

package vest

import (
	"context"
	"embed"

	"github.com/redis/go-redis/v9"

	"github.com/vestcore/vest/config"
	"github.com/vestcore/vest/database"
	"github.com/vestcore/vest/internal/cache"
	"github.com/vestcore/vest/internal/otp"
	redis_db "github.com/vestcore/vest/internal/redis-db"
)

// Vest is the root service object: the wallet directory, ledger and
// settlement operations hang off it.
type Vest struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	otp        *otp.Store
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewVest initializes the service with the provided datasource,
// wiring the Redis client and task queue from configuration.
func NewVest(db database.IDataSource) (*Vest, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	newCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)

	return &Vest{datasource: db, queue: newQueue, redis: redisClient.Client(), otp: otp.NewStore(newCache)}, nil
}

// GenerateOTP issues a single-use code for (purpose, owner), replacing
// any outstanding one. Codes live in Redis under the configured TTL so
// verification works from any instance.
func (l *Vest) GenerateOTP(ctx context.Context, purpose, ownerID string) (string, error) {
	return l.otp.Generate(ctx, purpose, ownerID)
}

// VerifyOTP checks and consumes a submitted code.
func (l *Vest) VerifyOTP(ctx context.Context, purpose, ownerID, code string) (bool, error) {
	return l.otp.Verify(ctx, purpose, ownerID, code)
}

// InvalidateOTP discards any outstanding code for (purpose, owner).
func (l *Vest) InvalidateOTP(ctx context.Context, purpose, ownerID string) error {
	return l.otp.Invalidate(ctx, purpose, ownerID)
}
