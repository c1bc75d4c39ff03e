package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"go.uber.org/zap"
)

// KeyPoolService owns the deposit-address inventory: bulk import, the
// admin stats view and the force-mark used by reconciliation. Claims go
// through the AssignmentService, which binds the pool repo to its
// transaction.
type KeyPoolService struct {
	pool   *repository.KeyPoolRepo
	sealer *KeySealer
}

func NewKeyPoolService(pool *repository.KeyPoolRepo, sealer *KeySealer) *KeyPoolService {
	return &KeyPoolService{pool: pool, sealer: sealer}
}

type ImportRecord struct {
	Address    string
	PrivateKey string // optional; sealed before storage
}

type ImportFailure struct {
	Line    int    `json:"line"`
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

type ImportResult struct {
	Imported   int             `json:"imported"`
	Duplicates int             `json:"duplicates"`
	Errors     int             `json:"errors"`
	Failed     []ImportFailure `json:"failed,omitempty"`
}

// ImportBatch inserts records one at a time so a duplicate or bad row
// never fails the rest of the batch.
func (s *KeyPoolService) ImportBatch(ctx context.Context, records []ImportRecord, currency model.Currency) (*ImportResult, error) {
	result := &ImportResult{}
	for i, in := range records {
		line := i + 1
		address := strings.TrimSpace(in.Address)
		if address == "" {
			continue
		}

		rec := &model.KeyRecord{Currency: currency, PublicAddress: address}
		if key := strings.TrimSpace(in.PrivateKey); key != "" {
			sealed, err := s.sealer.Seal(key)
			if err != nil {
				result.Errors++
				result.Failed = append(result.Failed, ImportFailure{Line: line, Address: address, Reason: err.Error()})
				continue
			}
			rec.PrivateKeySealed = sealed
		}

		err := s.pool.Insert(ctx, rec)
		switch {
		case errors.Is(err, apperr.ErrImportDuplicate):
			result.Duplicates++
			result.Failed = append(result.Failed, ImportFailure{Line: line, Address: address, Reason: apperr.ErrImportDuplicate.Error()})
		case err != nil:
			result.Errors++
			result.Failed = append(result.Failed, ImportFailure{Line: line, Address: address, Reason: err.Error()})
		default:
			result.Imported++
		}
	}
	zap.L().Info("key pool import finished",
		zap.String("currency", string(currency)),
		zap.Int("imported", result.Imported),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors))
	return result, nil
}

// ImportCSV reads "address[,privateKey]" rows. Blank lines are tolerated;
// malformed rows are counted, not fatal.
func (s *KeyPoolService) ImportCSV(ctx context.Context, r io.Reader, currency model.Currency) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records []ImportRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := ImportRecord{}
		if len(row) > 0 {
			rec.Address = row[0]
		}
		if len(row) > 1 {
			rec.PrivateKey = row[1]
		}
		records = append(records, rec)
	}
	return s.ImportBatch(ctx, records, currency)
}

func (s *KeyPoolService) MarkAssigned(ctx context.Context, currency model.Currency, address string, userID uint64) error {
	return s.pool.MarkAssigned(ctx, currency, address, userID)
}

func (s *KeyPoolService) Stats(ctx context.Context) ([]model.PoolStat, error) {
	return s.pool.Stats(ctx)
}
