package models

import (
	"context"
	"errors"
	"time"

	"github.com/flowstock/flowstock_backend/config"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// IdempotencyKey stores the first response produced for a mutating
// request carrying an Idempotency-Key header. Replays with the same
// (actor, endpoint, key) return the stored response instead of running
// the operation again.
type IdempotencyKey struct {
	ID             int       `gorm:"primary_key" json:"id"`
	Actor          string    `gorm:"size:100;not null;uniqueIndex:idx_idem_actor_endpoint_key" json:"actor"`
	Endpoint       string    `gorm:"size:150;not null;uniqueIndex:idx_idem_actor_endpoint_key" json:"endpoint"`
	Key            string    `gorm:"size:100;not null;uniqueIndex:idx_idem_actor_endpoint_key" json:"key"`
	ResponseStatus int       `gorm:"not null" json:"response_status"`
	ResponseBody   string    `gorm:"type:mediumtext" json:"response_body"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// LookupIdempotencyKey returns the stored response for a replayed
// request, or nil when the key is unseen or its record has aged out.
func LookupIdempotencyKey(ctx context.Context, actor string, endpoint string, key string) (*IdempotencyKey, error) {
	db := config.GetDB()
	var record IdempotencyKey
	err := db.WithContext(ctx).
		Where("actor = ? AND endpoint = ? AND `key` = ?", actor, endpoint, key).
		Take(&record).Error
	if err != nil {
		// An unreachable store degrades to re-running the mutation; make
		// that visible instead of swallowing the error as a cache miss.
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			config.LogError(config.GetLogger(), "idempotencyKey", "LookupIdempotencyKey",
				"idempotency lookup failed, treating key as unseen", endpoint, err)
		}
		return nil, nil
	}
	if time.Since(record.CreatedAt) > config.IdempotencyTTL() {
		return nil, nil
	}
	return &record, nil
}

// StoreIdempotencyKey saves the response of a completed request. A
// concurrent duplicate insert loses the unique-index race; that is fine,
// the first writer's response is the one replays will see.
func StoreIdempotencyKey(ctx context.Context, actor string, endpoint string, key string, status int, body string) {
	db := config.GetDB()
	record := IdempotencyKey{
		Actor:          actor,
		Endpoint:       endpoint,
		Key:            key,
		ResponseStatus: status,
		ResponseBody:   body,
	}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return
		}
		config.LogError(config.GetLogger(), "idempotencyKey", "StoreIdempotencyKey",
			"failed to store idempotency record", endpoint, err)
	}
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// CleanupIdempotencyKeys removes records older than the replay TTL.
func CleanupIdempotencyKeys(ctx context.Context) (int64, error) {
	db := config.GetDB()
	cutoff := time.Now().Add(-config.IdempotencyTTL())
	result := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&IdempotencyKey{})
	return result.RowsAffected, result.Error
}
