package expense

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	expenseBucketName = "expenses"
	reportBucketName  = "reports"
	mappingBucketName = "category_mappings"
)

// DB defines the interface for durable storage of the engine's records.
// Writes are atomic per entity; there are no cross-entity transactions.
type DB interface {
	// SaveExpense inserts or updates an expense
	SaveExpense(expense *Expense) error

	// GetExpense retrieves an expense by ID
	GetExpense(id string) (*Expense, error)

	// ListExpenses returns all expenses
	ListExpenses() ([]*Expense, error)

	// DeleteExpense removes an expense
	DeleteExpense(id string) error

	// SaveReport inserts or updates a report
	SaveReport(report *Report) error

	// GetReport retrieves a report by ID
	GetReport(id string) (*Report, error)

	// ListReports returns all reports
	ListReports() ([]*Report, error)

	// DeleteReport removes a report
	DeleteReport(id string) error

	// SaveCategoryMapping inserts or updates a category mapping
	SaveCategoryMapping(mapping *CategoryMapping) error

	// ListCategoryMappings returns all category mappings
	ListCategoryMappings() ([]*CategoryMapping, error)

	// DeleteCategoryMapping removes the mapping for a category
	DeleteCategoryMapping(category string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{expenseBucketName, reportBucketName, mappingBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func (b *BoltDB) put(bucket, key string, value any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshaling %s record: %w", bucket, err)
		}
		return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
	})
}

// SaveExpense inserts or updates an expense
func (b *BoltDB) SaveExpense(expense *Expense) error {
	return b.put(expenseBucketName, expense.ID, expense)
}

// GetExpense retrieves an expense by ID
func (b *BoltDB) GetExpense(id string) (*Expense, error) {
	var expense *Expense
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(expenseBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("expense not found: %s", id)
		}
		return json.Unmarshal(data, &expense)
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses returns all expenses
func (b *BoltDB) ListExpenses() ([]*Expense, error) {
	expenses := make([]*Expense, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(expenseBucketName)).ForEach(func(k, v []byte) error {
			var expense Expense
			if err := json.Unmarshal(v, &expense); err != nil {
				return fmt.Errorf("unmarshaling expense: %w", err)
			}
			expenses = append(expenses, &expense)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

// DeleteExpense removes an expense
func (b *BoltDB) DeleteExpense(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(expenseBucketName)).Delete([]byte(id))
	})
}

// SaveReport inserts or updates a report
func (b *BoltDB) SaveReport(report *Report) error {
	return b.put(reportBucketName, report.ID, report)
}

// GetReport retrieves a report by ID
func (b *BoltDB) GetReport(id string) (*Report, error) {
	var report *Report
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(reportBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("report not found: %s", id)
		}
		return json.Unmarshal(data, &report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ListReports returns all reports
func (b *BoltDB) ListReports() ([]*Report, error) {
	reports := make([]*Report, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(reportBucketName)).ForEach(func(k, v []byte) error {
			var report Report
			if err := json.Unmarshal(v, &report); err != nil {
				return fmt.Errorf("unmarshaling report: %w", err)
			}
			reports = append(reports, &report)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// DeleteReport removes a report
func (b *BoltDB) DeleteReport(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(reportBucketName)).Delete([]byte(id))
	})
}

// SaveCategoryMapping inserts or updates a category mapping
func (b *BoltDB) SaveCategoryMapping(mapping *CategoryMapping) error {
	return b.put(mappingBucketName, mapping.Category, mapping)
}

// ListCategoryMappings returns all category mappings
func (b *BoltDB) ListCategoryMappings() ([]*CategoryMapping, error) {
	mappings := make([]*CategoryMapping, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(mappingBucketName)).ForEach(func(k, v []byte) error {
			var mapping CategoryMapping
			if err := json.Unmarshal(v, &mapping); err != nil {
				return fmt.Errorf("unmarshaling category mapping: %w", err)
			}
			mappings = append(mappings, &mapping)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return mappings, nil
}

// DeleteCategoryMapping removes the mapping for a category
func (b *BoltDB) DeleteCategoryMapping(category string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(mappingBucketName)).Delete([]byte(category))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
