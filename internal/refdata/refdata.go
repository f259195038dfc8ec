// Package refdata loads the company reference dataset and canonicalizes
// free-text company names to the spelling used in the dataset.
package refdata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/finquery/finquery/internal/storage"
)

type Company struct {
	CIK    string
	Name   string
	Sector string
}

type companyRow struct {
	CIK    string `parquet:"cik"`
	Name   string `parquet:"name"`
	Sector string `parquet:"gics_sector,optional"`
}

// ReadCompanies decodes the company reference parquet payload.
func ReadCompanies(data []byte) ([]Company, error) {
	reader := parquet.NewGenericReader[companyRow](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	companies := make([]Company, 0, reader.NumRows())
	buf := make([]companyRow, 256)
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			companies = append(companies, Company{
				CIK:    buf[i].CIK,
				Name:   buf[i].Name,
				Sector: buf[i].Sector,
			})
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read company rows: %w", err)
		}
	}
	return companies, nil
}

func LoadLocal(path string) ([]Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read company reference file: %w", err)
	}
	return ReadCompanies(data)
}

func LoadFromStore(ctx context.Context, store storage.ObjectStore, key string) ([]Company, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch company reference object %q: %w", key, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read company reference object %q: %w", key, err)
	}
	return ReadCompanies(data)
}
