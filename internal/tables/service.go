package tables

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/tablewire/pos-engine/pkg/db"
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
)

// Service guards table floor-state transitions. Status changes come from the
// order lifecycle or explicit staff action, never from anywhere else.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetStatus transitions a table's floor state, rejecting illegal moves.
func (s *Service) SetStatus(ctx context.Context, tableID uuid.UUID, status enums.TableStatus) (*models.Table, error) {
	return s.setStatus(ctx, s.repo, tableID, status)
}

// SetStatusTx is SetStatus running inside an order mutation transaction.
func (s *Service) SetStatusTx(ctx context.Context, tx *gorm.DB, tableID uuid.UUID, status enums.TableStatus) error {
	_, err := s.setStatus(ctx, s.repo.WithTx(tx), tableID, status)
	return err
}

func (s *Service) setStatus(ctx context.Context, repo Repository, tableID uuid.UUID, status enums.TableStatus) (*models.Table, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid table status")
	}

	table, err := repo.FindByID(ctx, tableID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "table not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load table")
	}

	if table.Status == status {
		return table, nil
	}
	if !table.Status.CanTransitionTo(status) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "table cannot move from "+table.Status.String()+" to "+status.String())
	}

	if err := repo.UpdateStatus(ctx, tableID, status.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update table status")
	}
	table.Status = status
	return table, nil
}

// Get loads a single table.
func (s *Service) Get(ctx context.Context, tableID uuid.UUID) (*models.Table, error) {
	table, err := s.repo.FindByID(ctx, tableID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "table not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load table")
	}
	return table, nil
}

// List returns every table ordered by number.
func (s *Service) List(ctx context.Context) ([]models.Table, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tables")
	}
	return rows, nil
}
