// MIT License
//
// Copyright 2018 Canonical Ledgers, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS
// IN THE SOFTWARE.

package wallet

import (
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

const dbDriver = "sqlite3"

// keyRecord is one row of the SQL key table.
type keyRecord struct {
	Name string `gorm:"column:name; PRIMARY_KEY; NOT NULL;"`
	Data []byte `gorm:"column:data; NOT NULL;"`
}

func (keyRecord) TableName() string { return "wallet_keys" }

// SQL is a Persistence in a sqlite3 database.
type SQL struct {
	db *gorm.DB
}

var _ Persistence = SQL{}

// OpenSQL opens or creates the sqlite3 database at path. Use ":memory:" for
// a temporary database.
func OpenSQL(path string) (_ SQL, err error) {
	db, err := gorm.Open(dbDriver, path)
	if err != nil {
		return SQL{}, err
	}
	// Ensure the db gets closed if there are any issues.
	defer func() {
		if err != nil {
			db.Close()
		}
	}()
	db.LogMode(false)
	if err = db.AutoMigrate(&keyRecord{}).Error; err != nil {
		return SQL{}, fmt.Errorf("db.AutoMigrate(&keyRecord{}): %w", err)
	}
	return SQL{db: db}, nil
}

func (s SQL) Get(key string) ([]byte, error) {
	var rec keyRecord
	if err := s.db.Where("name = ?", key).First(&rec).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec.Data, nil
}

func (s SQL) Put(key string, value []byte) error {
	return s.db.Save(&keyRecord{Name: key, Data: value}).Error
}

func (s SQL) Delete(key string) error {
	return s.db.Where("name = ?", key).Delete(&keyRecord{}).Error
}

func (s SQL) Keys() ([]string, error) {
	var keys []string
	if err := s.db.Model(&keyRecord{}).Order("name").
		Pluck("name", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func (s SQL) Close() error { return s.db.Close() }
