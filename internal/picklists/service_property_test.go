package picklists

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

const propertyStock = 1000

// TestPickSequencesKeepQuantitiesConsistent drives random scan, pick and
// reset sequences and checks the quantity bounds, the list aggregate and
// stock conservation after every step.
func TestPickSequencesKeepQuantitiesConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("quantities stay bounded and conserved", prop.ForAll(
		func(ops []int) bool {
			suffix := uuid.NewString()[:8]
			products := []*models.CatalogProduct{
				f.product(t, "P1-"+suffix, "A-01", propertyStock),
				f.product(t, "P2-"+suffix, "A-02", propertyStock),
				f.product(t, "P3-"+suffix, "A-03", propertyStock),
			}
			list := f.build(t, f.labeledOrder(t,
				line{products[0], 2}, line{products[1], 3}, line{products[2], 5}))

			items := make([]models.PickListItem, 0, len(products))
			for _, p := range products {
				items = append(items, f.itemFor(t, list.ID, p.SKU))
			}

			for _, op := range ops {
				target := items[(op/3)%len(items)]
				qty := (op/9)%6 + 1
				switch op % 3 {
				case 0:
					_, _ = f.svc.Scan(ctx, list.ID, ScanInput{Code: target.SKU, Quantity: qty, Actor: "prop"})
				case 1:
					_, _ = f.svc.PickItem(ctx, list.ID, PickItemInput{ItemID: target.ID, Quantity: qty, Actor: "prop"})
				default:
					_, _ = f.svc.ResetItem(ctx, list.ID, target.ID, "prop")
				}
				if !consistent(t, f, list.ID, products) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(12, gen.IntRange(0, 53)),
	))

	properties.TestingRun(t)
}

func consistent(t *testing.T, f *fixture, listID uuid.UUID, products []*models.CatalogProduct) bool {
	stored := f.reload(t, listID)

	sum := 0
	allComplete := true
	for _, p := range products {
		item := f.itemFor(t, listID, p.SKU)
		if item.PickedQty < 0 || item.PickedQty > item.RequiredQty {
			return false
		}
		if item.IsComplete != (item.PickedQty == item.RequiredQty) {
			return false
		}
		// stock is plentiful, so every picked unit left the shelf exactly once
		if item.StockDeducted != item.PickedQty {
			return false
		}
		if propertyStock-f.stockOf(t, p.ID) != item.PickedQty {
			return false
		}
		allComplete = allComplete && item.IsComplete
		sum += item.PickedQty
	}
	if stored.PickedQuantity != sum {
		return false
	}
	return allComplete == (stored.Status == enums.PickListStatusCompleted)
}
