package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/tablewire/pos-engine/pkg/db"
	"github.com/tablewire/pos-engine/pkg/db/models"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
)

// Repo is the menu-item-backed default Gateway.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ResolveItem loads the current price and availability for a menu item.
func (r *Repo) ResolveItem(ctx context.Context, itemID uuid.UUID) (*ResolvedItem, error) {
	var item models.MenuItem
	err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve menu item")
	}
	return &ResolvedItem{
		ItemID:     item.ID,
		Name:       item.Name,
		PriceCents: item.PriceCents,
		Modifiers:  item.Modifiers,
		Available:  item.Active && !item.OutOfStock,
	}, nil
}
