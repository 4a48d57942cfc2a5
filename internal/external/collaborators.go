// Package external wires the collaborators the billing core consults but does
// not own: the contract document store and the fiscal number issuer.
package external

import (
	"context"
	"fmt"

	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
)

// DocumentStore answers whether a contract has a current signed document.
type DocumentStore interface {
	HasCurrentDocument(ctx context.Context, contractID uuid.UUID) (bool, error)
}

// NCFIssuer hands out fiscal numbers. NextNCF is called once per issued invoice
// and must run in the issuing transaction.
type NCFIssuer interface {
	NextNCF(ctx context.Context) (string, error)
}

type dbDocumentStore struct {
	contracts repository.ContractRepository
}

// NewDBDocumentStore reads document metadata recorded through contract attachments.
func NewDBDocumentStore(contracts repository.ContractRepository) DocumentStore {
	return &dbDocumentStore{contracts: contracts}
}

func (s *dbDocumentStore) HasCurrentDocument(ctx context.Context, contractID uuid.UUID) (bool, error) {
	docs, err := s.contracts.ListDocuments(ctx, contractID)
	if err != nil {
		return false, err
	}
	for _, d := range docs {
		if d.IsCurrent {
			return true, nil
		}
	}
	return false, nil
}

type sequenceNCFIssuer struct {
	series    string
	sequences repository.SequenceRepository
}

// NewSequenceNCFIssuer builds NCFs as series prefix plus an 8 digit counter, e.g. B0100000001.
func NewSequenceNCFIssuer(series string, sequences repository.SequenceRepository) NCFIssuer {
	return &sequenceNCFIssuer{series: series, sequences: sequences}
}

func (i *sequenceNCFIssuer) NextNCF(ctx context.Context) (string, error) {
	n, err := i.sequences.Next(ctx, model.SequenceNCF)
	if err != nil {
		return "", fmt.Errorf("failed to allocate NCF: %w", err)
	}
	return fmt.Sprintf("%s%08d", i.series, n), nil
}
