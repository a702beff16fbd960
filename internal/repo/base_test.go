package repo

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestBaseConnPrefersTransaction(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:repo_base?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	base := NewBase(conn)

	if got := base.Conn(context.Background(), nil); got.Statement.ConnPool != conn.Statement.ConnPool {
		t.Fatal("expected base connection when no transaction is supplied")
	}

	err = conn.Transaction(func(tx *gorm.DB) error {
		got := base.Conn(context.Background(), tx)
		if got.Statement.ConnPool != tx.Statement.ConnPool {
			t.Fatal("expected transaction connection")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}
