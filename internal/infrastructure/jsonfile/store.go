package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"
	"pigeon-auction/pkg/utils"
)

type document struct {
	Auctions []*domain.Auction `json:"auctions"`
}

// Store keeps every auction in one JSON document. Reads are served from
// memory; each mutation rewrites the whole file through a temp file and a
// rename so a crash leaves either the old or the new document on disk.
//
// Every operation first checks whether the file is still the one this Store
// last read or wrote and reloads it if not, so writers in other processes
// are picked up when they are serialized with this one by a shared
// AuctionLocker. The store is meant for a single instance; config rejects
// it together with Redis.
type Store struct {
	path string
	log  logger.Logger

	mu       sync.Mutex
	auctions []*domain.Auction
	index    map[string]int
	stamp    os.FileInfo
}

// Open reads path, creating an empty document when the file does not exist.
func Open(path string, log logger.Logger) (*Store, error) {
	s := &Store{path: path, log: log, index: make(map[string]int)}

	_, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		if err := s.flush(nil); err != nil {
			return nil, err
		}
		log.Info("Created auction store", "path", path)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read store: %w", err)
	}

	if err := s.readLocked(); err != nil {
		return nil, err
	}
	log.Info("Loaded auction store", "path", path, "auctions", len(s.auctions))
	return s, nil
}

// readLocked replaces the in-memory state with the document on disk.
func (s *Store) readLocked() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat store: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}

	var doc document
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode store %s: %w", s.path, err)
		}
	}

	auctions := make([]*domain.Auction, 0, len(doc.Auctions))
	index := make(map[string]int, len(doc.Auctions))
	for _, a := range doc.Auctions {
		if a == nil || a.ID == "" {
			continue
		}
		a.RefreshDerived()
		index[a.ID] = len(auctions)
		auctions = append(auctions, a)
	}

	s.auctions = auctions
	s.index = index
	s.stamp = info
	return nil
}

// refreshLocked reloads the document when another writer replaced the file.
// A missing file keeps the in-memory state; the next flush reports it.
func (s *Store) refreshLocked() error {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat store: %w", err)
	}
	if s.stamp != nil && os.SameFile(info, s.stamp) &&
		info.ModTime().Equal(s.stamp.ModTime()) && info.Size() == s.stamp.Size() {
		return nil
	}

	s.log.Debug("Auction store changed on disk, reloading", "path", s.path)
	return s.readLocked()
}

func (s *Store) Load(ctx context.Context, auctionID string) (*domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}

	i, ok := s.index[auctionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auctionID)
	}
	return s.auctions[i].Clone(), nil
}

func (s *Store) Save(ctx context.Context, auction *domain.Auction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return err
	}

	i, ok := s.index[auction.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auction.ID)
	}

	next := make([]*domain.Auction, len(s.auctions))
	copy(next, s.auctions)
	next[i] = auction.Clone()
	next[i].RefreshDerived()

	if err := s.flush(next); err != nil {
		return err
	}
	s.auctions = next
	return nil
}

func (s *Store) Create(ctx context.Context, auction *domain.Auction) (*domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	created := auction.Clone()
	if created.ID == "" {
		created.ID = utils.GenerateID("")
	}
	now := time.Now().UTC()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = created.CreatedAt
	}
	if created.Bids == nil {
		created.Bids = []*domain.Bid{}
	}
	created.RefreshDerived()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}

	if _, exists := s.index[created.ID]; exists {
		return nil, fmt.Errorf("%w: auction %s already exists", domain.ErrInvalidInput, created.ID)
	}

	next := append(append(make([]*domain.Auction, 0, len(s.auctions)+1), s.auctions...), created)
	if err := s.flush(next); err != nil {
		return nil, err
	}
	s.auctions = next
	s.index[created.ID] = len(next) - 1

	return created.Clone(), nil
}

// List returns matching auctions without their bid ledgers.
func (s *Store) List(ctx context.Context, filter domain.AuctionFilter) ([]*domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.refreshLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	result := make([]*domain.Auction, 0)
	for _, a := range s.auctions {
		if !filter.Matches(a) {
			continue
		}
		c := a.Clone()
		c.RefreshDerived()
		c.Bids = nil
		result = append(result, c)
	}
	s.mu.Unlock()

	domain.SortAuctions(result, filter.SortBy)
	if limit := filter.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) flush(auctions []*domain.Auction) error {
	if auctions == nil {
		auctions = []*domain.Auction{}
	}
	data, err := json.MarshalIndent(document{Auctions: auctions}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		s.log.Error("Failed to replace auction store", "path", s.path, "error", err)
		return fmt.Errorf("replace store: %w", err)
	}

	// an unknown stamp forces a reload on the next access
	s.stamp = nil
	if info, err := os.Stat(s.path); err == nil {
		s.stamp = info
	}
	return nil
}
