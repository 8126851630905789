package mysql

import (
	"fmt"
	"os"

	"checkout-service/internal/domain"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// DSNFromEnv builds a DSN from the MYSQL_* variables.
func DSNFromEnv() string {
	user := os.Getenv("MYSQL_USER")
	pass := os.Getenv("MYSQL_PASSWORD")
	host := os.Getenv("MYSQL_HOST")
	port := os.Getenv("MYSQL_PORT")
	dbname := os.Getenv("MYSQL_DATABASE")

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC", user, pass, host, port, dbname)
}

// Open connects to MySQL and migrates the checkout tables. An empty dsn
// falls back to DSNFromEnv.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = DSNFromEnv()
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(domain.PersistentModels()...); err != nil {
		return nil, err
	}

	return db, nil
}
