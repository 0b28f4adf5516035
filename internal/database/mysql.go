// Package database 管理 MySQL 连接与建表
// MySQL 仅承载通知投递记录,属可选依赖;未配置 DSN 时整个模块不启用
package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// 表名常量
const (
	TableNotifyRecords = "notify_records"
)

// SQL 建表语句常量
// 使用 InnoDB 引擎支持事务,utf8mb4 支持完整 Unicode 字符集
const (
	// createNotifyRecordsTableSQL 通知投递记录表
	// 记录每次读取通知的投递结果,支撑通知通道独立的重试与排障
	createNotifyRecordsTableSQL = `
		CREATE TABLE IF NOT EXISTS notify_records (
			id BIGINT AUTO_INCREMENT PRIMARY KEY COMMENT '自增ID',
			message_id VARCHAR(128) NOT NULL COMMENT '消息ID',
			attempt INT NOT NULL DEFAULT 1 COMMENT '第几次投递尝试',
			status VARCHAR(32) NOT NULL COMMENT '投递状态 sent/failed',
			error_detail TEXT COMMENT '失败原因',
			read_at BIGINT NOT NULL COMMENT '消息被读取的时间戳',
			delivered_at BIGINT NOT NULL COMMENT '投递尝试时间戳',
			INDEX idx_message_id (message_id),
			INDEX idx_status (status),
			INDEX idx_delivered_at (delivered_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
		COMMENT='读取通知投递记录表'
	`
)

// 连接池默认参数
const (
	defaultMaxOpenConnections = 16
	defaultMaxIdleConnections = 4
	defaultConnMaxLifetime    = time.Hour
)

// Open 建立 MySQL 连接并初始化表结构
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Printf("[Database] MySQL 连接就绪,表结构已初始化")

	return db, nil
}

// createTables 初始化表结构
func createTables(db *sql.DB) error {
	if _, err := db.Exec(createNotifyRecordsTableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", TableNotifyRecords, err)
	}

	return nil
}
