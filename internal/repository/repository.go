// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxDB 带事务边界的数据库接口
// 解的持久化与换版必须走 Transaction。
type TxDB interface {
	DB
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}

// toWeekdays 把存储态的星期数组转回 time.Weekday
func toWeekdays(arr pq.Int64Array) []time.Weekday {
	if len(arr) == 0 {
		return nil
	}
	result := make([]time.Weekday, len(arr))
	for i, v := range arr {
		result[i] = time.Weekday(v)
	}
	return result
}
