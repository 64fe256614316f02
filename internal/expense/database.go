package expense

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucketName  = "receipts"
	reportBucketName   = "reports"
	categoryBucketName = "categories"

	categoryKey = "known"
)

// Store is the persistence adapter. The service owns the in-memory state
// and writes through after every mutation; Load is called once at startup.
type Store interface {
	// Load reads all persisted receipts, reports, and the registered
	// category set. A nil category slice means none were ever saved.
	Load() (map[string]*Receipt, map[string]*ExpenseReport, []string, error)

	// SaveReceipt persists a receipt.
	SaveReceipt(receipt *Receipt) error

	// DeleteReceipt removes a persisted receipt.
	DeleteReceipt(id string) error

	// SaveReport persists an expense report.
	SaveReport(report *ExpenseReport) error

	// DeleteReport removes a persisted expense report.
	DeleteReport(id string) error

	// SaveCategories persists the registered category set.
	SaveCategories(categories []string) error

	// Close closes the store.
	Close() error
}

// BoltStore implements Store on a single bbolt file, one JSON-encoded
// record per key.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (creating if needed) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{receiptBucketName, reportBucketName, categoryBucketName} {
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

	return &BoltStore{db: db}, nil
}

// Load reads the full persisted state.
func (b *BoltStore) Load() (map[string]*Receipt, map[string]*ExpenseReport, []string, error) {
	receipts := make(map[string]*Receipt)
	reports := make(map[string]*ExpenseReport)
	var categories []string

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		err := bucket.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %s: %w", k, err)
			}
			receipts[receipt.ID] = &receipt
			return nil
		})
		if err != nil {
			return err
		}

		bucket = tx.Bucket([]byte(reportBucketName))
		err = bucket.ForEach(func(k, v []byte) error {
			var report ExpenseReport
			if err := json.Unmarshal(v, &report); err != nil {
				return fmt.Errorf("unmarshaling report %s: %w", k, err)
			}
			reports[report.ID] = &report
			return nil
		})
		if err != nil {
			return err
		}

		bucket = tx.Bucket([]byte(categoryBucketName))
		if data := bucket.Get([]byte(categoryKey)); data != nil {
			if err := json.Unmarshal(data, &categories); err != nil {
				return fmt.Errorf("unmarshaling categories: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return receipts, reports, categories, nil
}

// SaveReceipt persists a receipt.
func (b *BoltStore) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		return bucket.Put([]byte(receipt.ID), data)
	})
}

// DeleteReceipt removes a persisted receipt.
func (b *BoltStore) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptBucketName)).Delete([]byte(id))
	})
}

// SaveReport persists an expense report.
func (b *BoltStore) SaveReport(report *ExpenseReport) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		return bucket.Put([]byte(report.ID), data)
	})
}

// DeleteReport removes a persisted expense report.
func (b *BoltStore) DeleteReport(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(reportBucketName)).Delete([]byte(id))
	})
}

// SaveCategories persists the registered category set.
func (b *BoltStore) SaveCategories(categories []string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(categories)
		if err != nil {
			return fmt.Errorf("marshaling categories: %w", err)
		}
		return tx.Bucket([]byte(categoryBucketName)).Put([]byte(categoryKey), data)
	})
}

// Close closes the underlying database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
