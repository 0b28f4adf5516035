package recorder

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/database"
)

// ==================== MySQL 实现 ====================

// MySQLRecorder 基于 MySQL 的投递记录器
type MySQLRecorder struct {
	db *sql.DB
}

// NewMySQLRecorder 创建 MySQL 投递记录器
func NewMySQLRecorder(db *sql.DB) *MySQLRecorder {
	return &MySQLRecorder{db: db}
}

// Save 写入一条投递记录
func (recorder *MySQLRecorder) Save(ctx context.Context, record Record) error {
	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (message_id, attempt, status, error_detail, read_at, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, database.TableNotifyRecords)

	_, err := recorder.db.ExecContext(
		ctx,
		insertSQL,
		record.MessageID,
		record.Attempt,
		record.Status,
		record.ErrorDetail,
		record.ReadAt.UnixMilli(),
		record.DeliveredAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save notify record for %s: %w", record.MessageID, err)
	}

	return nil
}
