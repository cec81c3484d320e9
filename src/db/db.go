package db

import (
	"eventix/src/config"
	"eventix/src/models"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func GetDb() (*gorm.DB, error) {
	if db != nil {
		return db, nil
	}
	_db, err := Open(postgres.Open(config.GetDSN()))
	if err != nil {
		return nil, err
	}
	db = _db
	return _db, nil
}

// Open connects with the pool limits used by the API.
func Open(dialector gorm.Dialector, opts ...gorm.Option) (*gorm.DB, error) {
	_db, err := gorm.Open(dialector, opts...)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	sqlDB, err := _db.DB()
	if err != nil {
		return nil, fmt.Errorf("error establishing connection to database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	return _db, nil
}

func NewDB(newdb *gorm.DB) {
	db = newdb
}

func Migrate(d *gorm.DB) error {
	return d.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.Coupon{},
		&models.Voucher{},
		&models.Point{},
		&models.Transaction{},
		&models.TransactionPoint{},
		&models.Ticket{},
	)
}
