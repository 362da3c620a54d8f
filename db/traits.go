package db

import (
	"iter"

	"github.com/dasdy/gridsync/model"
)

// Storage keeps a snapshot of the fetched dataset.
type Storage interface {
	StoreRows(rows []model.Row) error
	GatherAll() ([]model.Row, error)
	AllIterator() (iter.Seq2[int, model.Row], error)
	Count() (int, error)
	Close()
}
