package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
	"github.com/vladislavdragonenkov/comptoirs/internal/storage/memory"
)

func newOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		CustomerCode:    "ALFKI",
		DeliveryAddress: "Obere Str. 57, Berlin",
		Lines: []domain.OrderLine{
			{ID: "line-1", ProductRef: 93, Quantity: 5, CreatedAt: now},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateAssignsNumber(t *testing.T) {
	repo := memory.NewOrderRepository()

	created, err := repo.Create(newOrder())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Number == 0 {
		t.Fatal("expected generated order number")
	}

	second, err := repo.Create(newOrder())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if second.Number == created.Number {
		t.Fatalf("expected distinct numbers, got %d twice", created.Number)
	}
}

func TestOrderRepository_GetNotFound(t *testing.T) {
	repo := memory.NewOrderRepository()

	if _, err := repo.Get(123456); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_SaveIncrementsVersion(t *testing.T) {
	repo := memory.NewOrderRepository()
	created, err := repo.Create(newOrder())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	created.DeliveryAddress = "Walserweg 21, Aachen"
	if err := repo.Save(created); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, err := repo.Get(created.Number)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.DeliveryAddress != "Walserweg 21, Aachen" {
		t.Fatalf("expected updated address, got %s", updated.DeliveryAddress)
	}
	if updated.Version != created.Version+1 {
		t.Fatalf("expected version increment, got %d", updated.Version)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewOrderRepository()
	created, err := repo.Create(newOrder())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	created.Version = 42
	if err := repo.Save(created); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestOrderRepository_ListByCustomer(t *testing.T) {
	repo := memory.NewOrderRepository()
	if _, err := repo.Create(newOrder()); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	other := newOrder()
	other.CustomerCode = "BONAP"
	if _, err := repo.Create(other); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	orders, err := repo.ListByCustomer("ALFKI", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	if orders[0].CustomerCode != "ALFKI" {
		t.Fatalf("unexpected customer %s", orders[0].CustomerCode)
	}
}
