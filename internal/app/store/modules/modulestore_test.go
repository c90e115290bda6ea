package modulestore_test

import (
	"errors"
	"testing"

	modulestore "github.com/dalemusser/curriculum/internal/app/store/modules"
	"github.com/dalemusser/curriculum/internal/domain/models"
	"github.com/dalemusser/curriculum/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Lookups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s := modulestore.New(db)
	b1, err := s.Create(ctx, models.Module{Code: " BLK1 ", Name: "Block  One", Category: models.CategoryBlock})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b1.Code != "BLK1" || b1.Name != "Block One" {
		t.Errorf("normalized: got %q/%q", b1.Code, b1.Name)
	}
	if _, err := s.Create(ctx, models.Module{Code: "CSR01", Name: "Clinical Reasoning", Category: models.CategoryCSR}); err != nil {
		t.Fatalf("Create CSR01: %v", err)
	}

	got, err := s.GetByCode(ctx, "BLK1")
	if err != nil || got.ID != b1.ID {
		t.Errorf("GetByCode: got %+v, %v", got, err)
	}
	if _, err := s.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, modulestore.ErrNotFound) {
		t.Errorf("GetByID unknown: got %v, want ErrNotFound", err)
	}

	blocks, err := s.List(ctx, models.CategoryBlock)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Code != "BLK1" {
		t.Errorf("List(block): got %+v", blocks)
	}

	some, err := s.ListByCodes(ctx, []string{"CSR01", "NOPE", "BLK1"})
	if err != nil {
		t.Fatalf("ListByCodes: %v", err)
	}
	if len(some) != 2 || some[0].Code != "BLK1" || some[1].Code != "CSR01" {
		t.Errorf("ListByCodes: got %+v", some)
	}
}
