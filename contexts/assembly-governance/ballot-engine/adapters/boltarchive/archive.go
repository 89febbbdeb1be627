// Package boltarchive persists published tally artifacts in a local bbolt
// file. Publication is write-once: a ballot key can never be overwritten, so
// an artifact fetched later is byte-identical to the one first published.
package boltarchive

import (
	"context"
	"fmt"
	"strings"

	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"
	"agora/contexts/assembly-governance/ballot-engine/ports"

	bolt "go.etcd.io/bbolt"
)

var bucketResults = []byte("ballot_results")

type Archive struct {
	db *bolt.DB
}

// Open opens (or creates) the archive file and ensures the results bucket
// exists.
func Open(path string) (*Archive, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open result archive: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResults)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init result archive: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) Publish(_ context.Context, ballotID string, artifact []byte) error {
	key := []byte(strings.TrimSpace(ballotID))
	return a.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketResults)
		if bucket.Get(key) != nil {
			return domainerrors.ErrAlreadyPublished
		}
		return bucket.Put(key, artifact)
	})
}

func (a *Archive) Fetch(_ context.Context, ballotID string) ([]byte, bool, error) {
	key := []byte(strings.TrimSpace(ballotID))
	var artifact []byte
	err := a.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketResults).Get(key)
		if value == nil {
			return nil
		}
		artifact = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if artifact == nil {
		return nil, false, nil
	}
	return artifact, true, nil
}

var _ ports.ResultArchive = (*Archive)(nil)
